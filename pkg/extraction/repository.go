package extraction

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("extraction run not found")

// RunStore persists the run ledger.
type RunStore interface {
	Create(ctx context.Context, run *Run) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	Complete(ctx context.Context, id string, summary []byte) error
	IncrementRetry(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Run, error)
	CleanupExpired(ctx context.Context, ttl time.Duration) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Run{})
}

func (r *Repository) Create(ctx context.Context, run *Run) error {
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"updated_at":   now,
			"last_attempt": now,
		}).Error
}

func (r *Repository) Complete(ctx context.Context, id string, summary []byte) error {
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     StatusCompleted,
			"error":      "",
			"summary":    datatypes.JSON(summary),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) IncrementRetry(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &run, result.Error
}

func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return r.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff, []string{StatusCompleted, StatusFailed}).
		Delete(&Run{}).Error
}
