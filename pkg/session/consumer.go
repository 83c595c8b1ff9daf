package session

import (
	"context"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/kafka"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

// CodeRecorder is the slice of the repository the intake needs.
type CodeRecorder interface {
	RecordCode(ctx context.Context, account, code, status string) error
}

// CodeIntake turns challenge-code events from the inbound-email relay into
// ChallengeCodeRecord rows for the manager's poll loop to find.
type CodeIntake struct {
	codes CodeRecorder
}

func NewCodeIntake(codes CodeRecorder) *CodeIntake {
	return &CodeIntake{codes: codes}
}

// Handle processes one relay event. Events of other types are committed and
// ignored; a malformed code event is recorded as failed so operators can see
// the relay misbehaving.
func (i *CodeIntake) Handle(ctx context.Context, event kafka.Event) error {
	if event.Type != "challenge.code" {
		return nil
	}

	account, _ := event.Data["account"].(string)
	code, _ := event.Data["code"].(string)
	if account == "" {
		logger.Log.WithField("event_id", event.ID).Warn("Challenge code event without account")
		return nil
	}

	status := CodeStatusExtracted
	if code == "" {
		status = CodeStatusFailed
	}
	if err := i.codes.RecordCode(ctx, account, code, status); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"account": account,
		"status":  status,
	}).Info("Challenge code recorded")
	return nil
}
