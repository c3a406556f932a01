package models

import (
	"time"
)

// Event bus types
const (
	EventExtractionRequested = "extraction.requested"
	EventExtractionStarted   = "extraction.started"
	EventExtractionCompleted = "extraction.completed"
	EventExtractionFailed    = "extraction.failed"
	EventPhenopacket         = "phenopacket"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // extraction.requested, extraction.started, extraction.completed, extraction.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// ExtractionRequest asks for one run of a manifest. Manifest is a path
// relative to the service's manifest root; ManifestYAML carries an inline
// manifest instead.
type ExtractionRequest struct {
	Manifest     string            `json:"manifest,omitempty"`
	ManifestYAML string            `json:"manifest_yaml,omitempty"`
	RequestedBy  string            `json:"requested_by,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

type ExtractionResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractionStatus is the public view of one extraction run. Summary is set
// once the run has completed.
type ExtractionStatus struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Manifest    string      `json:"manifest"`
	Cohort      string      `json:"cohort,omitempty"`
	RequestedBy string      `json:"requested_by,omitempty"`
	Error       string      `json:"error,omitempty"`
	Attempts    int         `json:"attempts"`
	Summary     *RunSummary `json:"summary,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RunSummary is the outcome of one extraction run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Cohort     string         `json:"cohort"`
	Tables     int            `json:"tables"`
	Patients   int            `json:"patients"`
	Packets    int            `json:"packets"`
	Issues     map[string]int `json:"issues,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalIssues sums the data issues of every kind.
func (s RunSummary) TotalIssues() int {
	total := 0
	for _, n := range s.Issues {
		total += n
	}
	return total
}
