package taskqueue

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	QueueDiscovery  = "discovery"
	QueueEnrichment = "enrichment"
	QueuePublishing = "publishing"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// maxErrorMessageLen bounds what we persist; stack-trace-sized messages belong
// in logs, not rows.
const maxErrorMessageLen = 500

// Task is one durable unit of pipeline work. All three queues share the table;
// the queue column partitions them and the payload carries queue-specific
// fields (query/location/category for discovery, entity reference for
// enrichment, listing reference and channels for publishing).
type Task struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Queue        string            `gorm:"column:queue;index:idx_tasks_claim,priority:1" json:"queue"`
	Payload      datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	Status       string            `gorm:"column:status;index:idx_tasks_claim,priority:2" json:"status"`
	Attempts     int               `gorm:"column:attempts" json:"attempts"`
	MaxAttempts  int               `gorm:"column:max_attempts" json:"max_attempts"`
	ScheduledFor time.Time         `gorm:"column:scheduled_for;index:idx_tasks_claim,priority:3" json:"scheduled_for"`
	ErrorMessage string            `gorm:"column:error_message" json:"error_message,omitempty"`
	Result       datatypes.JSONMap `gorm:"column:result" json:"result,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at" json:"updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Task) TableName() string {
	return "pipeline_tasks"
}

func truncateError(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return msg[:maxErrorMessageLen]
	}
	return msg
}
