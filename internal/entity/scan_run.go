package entity

import "time"

// RunKind names the pipeline a run drives.
type RunKind string

const (
	RunScan  RunKind = "scan"
	RunCheck RunKind = "check"
)

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	// RunCanceled marks a run abandoned between chunks.
	RunCanceled RunState = "canceled"
)

// ScanRun is the progress record of one scan or check invocation.
type ScanRun struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	State      RunState   `json:"state"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
