package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/linkchecker-service/internal/delivery/http/response"
	"github.com/user/linkchecker-service/internal/entity"
)

func newReportCmd() *cobra.Command {
	var (
		queue  bool
		asCSV  bool
		broken bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the link report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var recs []entity.LinkRecord
			if queue {
				recs = a.report.Queue(cmd.Context())
			} else {
				recs = a.report.Checked(cmd.Context())
			}
			if broken {
				recs = onlyBroken(recs)
			}

			out := cmd.OutOrStdout()
			if asCSV {
				return response.WriteReportCSV(out, recs)
			}
			renderReport(out, recs)
			renderStats(out, a.report.Stats(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "list links still waiting for a check")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	cmd.Flags().BoolVar(&broken, "broken", false, "only list broken links")
	return cmd
}

func onlyBroken(recs []entity.LinkRecord) []entity.LinkRecord {
	var out []entity.LinkRecord
	for _, r := range recs {
		if r.Status == entity.StatusBroken {
			out = append(out, r)
		}
	}
	return out
}

func renderReport(w io.Writer, recs []entity.LinkRecord) {
	t := response.ReportTable(recs)
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendFooter(table.Row{"", "", "Rows", len(recs), ""})
	t.Render()
}

func renderStats(w io.Writer, s entity.ReportStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Ok", "Broken", "Unchecked", "Total"})
	t.AppendRow(table.Row{s.Ok, s.Broken, s.Unchecked, s.Total()})
	t.Render()
}
