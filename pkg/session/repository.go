package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
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
	return r.db.AutoMigrate(&SessionState{}, &ChallengeRecord{}, &ChallengeCodeRecord{})
}

// LoadSession returns the persisted blob for the account, or
// ErrSessionNotFound when the account has never logged in here.
func (r *Repository) LoadSession(ctx context.Context, account string) ([]byte, error) {
	var state SessionState
	err := r.db.WithContext(ctx).First(&state, "account = ?", account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return state.Blob, nil
}

// SaveSession upserts the blob for the account.
func (r *Repository) SaveSession(ctx context.Context, account string, blob []byte) error {
	state := SessionState{Account: account, Blob: blob, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
		}).
		Create(&state).Error
}

func (r *Repository) CreateChallenge(ctx context.Context, account, method string) (*ChallengeRecord, error) {
	rec := &ChallengeRecord{
		ID:        uuid.New(),
		Account:   account,
		Method:    method,
		Status:    ChallengeStatusPending,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) CompleteChallenge(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&ChallengeRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": ChallengeStatusCompleted, "completed_at": &now}).Error
}

// LatestCode returns the newest extracted code for the account created at or
// after since, or nil when none has arrived yet.
func (r *Repository) LatestCode(ctx context.Context, account string, since time.Time) (*ChallengeCodeRecord, error) {
	var code ChallengeCodeRecord
	err := r.db.WithContext(ctx).
		Where("account = ? AND status = ? AND created_at >= ?", account, CodeStatusExtracted, since).
		Order("created_at DESC").
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// RecordCode stores a code extracted by the inbound-message relay.
func (r *Repository) RecordCode(ctx context.Context, account, code, status string) error {
	rec := &ChallengeCodeRecord{
		ID:        uuid.New(),
		Account:   account,
		Code:      code,
		Status:    status,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Create(rec).Error
}
