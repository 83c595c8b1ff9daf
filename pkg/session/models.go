package session

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChallengeStatusPending   = "pending"
	ChallengeStatusCompleted = "completed"

	CodeStatusExtracted = "extracted"
	CodeStatusFailed    = "failed"
)

// SessionState holds one opaque serialized session blob per external account.
// It is read at cold start and rewritten after every successful login or
// challenge transition.
type SessionState struct {
	Account   string    `gorm:"column:account;primaryKey" json:"account"`
	Blob      []byte    `gorm:"column:blob;type:bytea" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SessionState) TableName() string {
	return "session_states"
}

// ChallengeRecord tracks one in-flight identity verification round trip.
type ChallengeRecord struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Account     string     `gorm:"column:account;index" json:"account"`
	Method      string     `gorm:"column:method" json:"method"`
	Status      string     `gorm:"column:status" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ChallengeRecord) TableName() string {
	return "session_challenges"
}

// ChallengeCodeRecord is written by the inbound-email relay when it extracts
// a verification code from a provider message. The manager only ever reads
// codes newer than the challenge it is resolving.
type ChallengeCodeRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Account   string    `gorm:"column:account;index" json:"account"`
	Code      string    `gorm:"column:code" json:"code"`
	Status    string    `gorm:"column:status" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ChallengeCodeRecord) TableName() string {
	return "session_challenge_codes"
}
