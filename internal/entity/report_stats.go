package entity

// ReportStats counts link report rows by status.
type ReportStats struct {
	Ok        int64 `json:"ok"`
	Broken    int64 `json:"broken"`
	Unchecked int64 `json:"unchecked"`
}

// Total returns the number of rows in the report.
func (s ReportStats) Total() int64 {
	return s.Ok + s.Broken + s.Unchecked
}
