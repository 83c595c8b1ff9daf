package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Task{})
}

// Enqueue creates a pending task eligible immediately.
func (r *Repository) Enqueue(ctx context.Context, queue string, payload map[string]interface{}, maxAttempts int) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:           uuid.New(),
		Queue:        queue,
		Payload:      datatypes.JSONMap(payload),
		Status:       StatusPending,
		MaxAttempts:  maxAttempts,
		ScheduledFor: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// ClaimNext atomically selects the oldest eligible pending task, flips it to
// processing and increments attempts. The row lock with SKIP LOCKED makes two
// concurrent claims land on different rows; a claimed row is invisible to
// other claimers until the transaction commits, by which time it is no longer
// pending. Returns nil with no error when the queue is empty.
func (r *Repository) ClaimNext(ctx context.Context, queue string) (*Task, error) {
	var task Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND status = ? AND scheduled_for <= ?", queue, StatusPending, time.Now().UTC()).
			Order("scheduled_for asc, created_at asc").
			First(&task).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		task.Status = StatusProcessing
		task.Attempts++
		task.StartedAt = &now
		task.UpdatedAt = now

		return tx.Model(&Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":     StatusProcessing,
			"attempts":   task.Attempts,
			"started_at": now,
			"updated_at": now,
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Complete marks the task terminally successful and stores result metrics.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, status string, result map[string]interface{}) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
		"updated_at":   now,
	}
	if result != nil {
		updates["result"] = datatypes.JSONMap(result)
	}
	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(updates).Error
}

// Reschedule returns a retryable failure to pending at a later eligibility
// time.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        StatusPending,
		"scheduled_for": at,
		"error_message": truncateError(errMsg),
		"updated_at":    time.Now().UTC(),
	}).Error
}

// Fail marks the task terminally failed.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        StatusFailed,
		"error_message": truncateError(errMsg),
		"completed_at":  now,
		"updated_at":    now,
	}).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	var task Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *Repository) List(ctx context.Context, queue string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []Task
	result := r.db.WithContext(ctx).Where("queue = ?", queue).Order("created_at desc").Limit(limit).Find(&tasks)
	return tasks, result.Error
}
