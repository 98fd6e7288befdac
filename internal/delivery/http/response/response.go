package response

import (
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// LinkResponse is one row of the link report.
type LinkResponse struct {
	ID     int64  `json:"id"`
	Entity string `json:"entity"`
	Field  string `json:"field"`
	Alias  string `json:"alias"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ReportResponse wraps a list of links.
type ReportResponse struct {
	Count int            `json:"count"`
	Links []LinkResponse `json:"links"`
}

// NewReportResponse maps link records to the wire shape.
func NewReportResponse(recs []entity.LinkRecord) ReportResponse {
	links := make([]LinkResponse, 0, len(recs))
	for _, r := range recs {
		l := LinkResponse{
			ID:     r.ID,
			Entity: r.EntityType,
			Field:  r.EntityField,
			Alias:  r.Alias,
			URL:    r.URL,
			Status: r.Status.String(),
		}
		if r.Reason != nil {
			l.Reason = *r.Reason
		}
		links = append(links, l)
	}
	return ReportResponse{Count: len(links), Links: links}
}

type StatsResponse struct {
	Ok        int64 `json:"ok"`
	Broken    int64 `json:"broken"`
	Unchecked int64 `json:"unchecked"`
	Total     int64 `json:"total"`
}

type StartRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunResponse is a DTO for run progress, mirroring entity.ScanRun.
type RunResponse struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      string     `json:"state"` // "running" or "completed"
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
