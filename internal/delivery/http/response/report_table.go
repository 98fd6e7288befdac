package response

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/user/linkchecker-service/internal/entity"
)

// ReportTable lays out link records with the columns
// Entity, Alias, Url, Status, Reason.
func ReportTable(recs []entity.LinkRecord) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Entity", "Alias", "Url", "Status", "Reason"})
	for _, r := range recs {
		reason := ""
		if r.Reason != nil {
			reason = *r.Reason
		}
		t.AppendRow(table.Row{r.EntityType, r.Alias, r.URL, r.Status.String(), reason})
	}
	return t
}

// WriteReportCSV writes the report as CSV, header first.
func WriteReportCSV(w io.Writer, recs []entity.LinkRecord) error {
	_, err := io.WriteString(w, ReportTable(recs).RenderCSV()+"\n")
	return err
}
