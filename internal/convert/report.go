package convert

import "time"

// Run and file statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusLimited = "limited"
	StatusFailed  = "failed"
)

// FileReport describes how one input file contributed to a run.
type FileReport struct {
	RunID    string        `json:"run_id"`
	Path     string        `json:"path"`
	Checksum string        `json:"checksum"`
	Matches  int           `json:"matches"`
	Records  int           `json:"records"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report summarises one conversion run.
type Report struct {
	ID         string    `json:"id"`
	Output     string    `json:"output"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Files      int       `json:"files"`
	Skipped    int       `json:"skipped"`
	Matches    int       `json:"matches"`
	Records    int       `json:"records"`
	Dropped    int       `json:"dropped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Recorder persists run and file reports. RecordRun is called once when a
// run starts and again when it finishes.
type Recorder interface {
	RecordRun(r Report) error
	RecordFile(f FileReport) error
}

// Observer is notified of conversion progress.
type Observer interface {
	RunStarted(r Report)
	FileDone(f FileReport)
	RunDone(r Report)
}
