package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is the ledger entry for one extraction request.
type Run struct {
	ID          string            `json:"id" gorm:"primaryKey;column:id"`
	Manifest    string            `json:"manifest" gorm:"column:manifest"`
	Cohort      string            `json:"cohort" gorm:"column:cohort;index"`
	RequestedBy string            `json:"requested_by,omitempty" gorm:"column:requested_by"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	Status      string            `json:"status" gorm:"column:status"`
	Error       string            `json:"error,omitempty" gorm:"column:error"`
	Summary     datatypes.JSON    `json:"summary,omitempty" gorm:"column:summary"`
	CreatedAt   time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"column:updated_at"`
	RetryCount  int               `json:"retry_count" gorm:"column:retry_count"`
	LastAttempt *time.Time        `json:"last_attempt,omitempty" gorm:"column:last_attempt"`
}

func (Run) TableName() string {
	return "extraction_runs"
}

// Terminal reports whether the run will not change status again.
func (r Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// View converts the ledger row into the status returned to clients.
func (r Run) View() (models.ExtractionStatus, error) {
	view := models.ExtractionStatus{
		ID:          r.ID,
		Status:      r.Status,
		Manifest:    r.Manifest,
		Cohort:      r.Cohort,
		RequestedBy: r.RequestedBy,
		Error:       r.Error,
		Attempts:    r.RetryCount + 1,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Summary) > 0 {
		var summary models.RunSummary
		if err := json.Unmarshal(r.Summary, &summary); err != nil {
			return view, fmt.Errorf("decoding summary of run %s: %w", r.ID, err)
		}
		view.Summary = &summary
	}
	return view, nil
}
