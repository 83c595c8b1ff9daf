package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/config"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/lock"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

// SessionStore persists the opaque session blob between invocations.
type SessionStore interface {
	LoadSession(ctx context.Context, account string) ([]byte, error)
	SaveSession(ctx context.Context, account string, blob []byte) error
}

// ChallengeStore tracks challenge round trips and the codes the inbound-mail
// relay extracts for them.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, account, method string) (*ChallengeRecord, error)
	CompleteChallenge(ctx context.Context, id uuid.UUID) error
	LatestCode(ctx context.Context, account string, since time.Time) (*ChallengeCodeRecord, error)
}

// Manager owns every interaction with the external session provider. It is
// constructed per invocation and rehydrates all state from storage; nothing
// is assumed to survive in memory between calls. The wrapped client is a
// single mutable object, so every public action runs under the named lock.
type Manager struct {
	sessions   SessionStore
	challenges ChallengeStore
	locker     lock.Locker
	client     SocialClient
	clock      Clock

	account   string
	password  string
	pollEvery time.Duration
	waitLimit time.Duration
}

func NewManager(cfg *config.Config, sessions SessionStore, challenges ChallengeStore, locker lock.Locker, client SocialClient) *Manager {
	return &Manager{
		sessions:   sessions,
		challenges: challenges,
		locker:     locker,
		client:     client,
		clock:      NewClock(),
		account:    cfg.SocialUsername,
		password:   cfg.SocialPassword,
		pollEvery:  cfg.ChallengePollEvery,
		waitLimit:  cfg.ChallengeWaitTimeout,
	}
}

// SetClock replaces the wall clock, for tests.
func (m *Manager) SetClock(clock Clock) {
	m.clock = clock
}

// FetchRecentPosts returns recent content for an external account.
func (m *Manager) FetchRecentPosts(ctx context.Context, account string, limit int) ([]Post, error) {
	var posts []Post
	err := m.withLock(ctx, "fetch_recent_posts", func(ctx context.Context) error {
		if err := m.ensureLoggedIn(ctx); err != nil {
			return err
		}
		var err error
		posts, err = m.client.FetchRecentPosts(ctx, account, limit)
		return err
	})
	return posts, err
}

// Follow follows the target account.
func (m *Manager) Follow(ctx context.Context, account string) error {
	return m.withLock(ctx, "follow", func(ctx context.Context) error {
		if err := m.ensureLoggedIn(ctx); err != nil {
			return err
		}
		return m.client.Follow(ctx, account)
	})
}

// SubmitVerificationCode submits an operator-supplied code directly, outside
// the automatic poll loop.
func (m *Manager) SubmitVerificationCode(ctx context.Context, code string) error {
	return m.withLock(ctx, "submit_verification_code", func(ctx context.Context) error {
		blob, err := m.client.SubmitChallengeCode(ctx, code)
		if err != nil {
			return &ChallengeSubmissionError{Reason: err.Error()}
		}
		return m.sessions.SaveSession(ctx, m.account, blob)
	})
}

// withLock serializes access to the wrapped client. The lock is released on
// every exit path; a held lock surfaces as ErrBusy, never as waiting.
func (m *Manager) withLock(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	name := "session:" + m.account
	token, ok, err := m.locker.Acquire(ctx, name)
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		if releaseErr := m.locker.Release(ctx, name, token); releaseErr != nil {
			logger.Log.WithError(releaseErr).WithField("account", m.account).Warn("Failed to release session lock")
		}
	}()

	logger.Log.WithFields(map[string]interface{}{
		"account": m.account,
		"action":  action,
	}).Info("Session action")
	return fn(ctx)
}

// ensureLoggedIn restores the persisted session if one exists and only falls
// back to a credential login when restore is impossible.
func (m *Manager) ensureLoggedIn(ctx context.Context) error {
	blob, err := m.sessions.LoadSession(ctx, m.account)
	switch {
	case err == nil && len(blob) > 0:
		if restoreErr := m.client.Restore(ctx, blob); restoreErr == nil {
			return nil
		} else {
			logger.Log.WithError(restoreErr).WithField("account", m.account).Warn("Session restore failed, falling back to login")
		}
	case errors.Is(err, ErrSessionNotFound):
		// cold start for this account
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}
	return m.login(ctx)
}

func (m *Manager) login(ctx context.Context) error {
	blob, err := m.client.Login(ctx, m.account, m.password)
	var challenge *ChallengeRequiredError
	if errors.As(err, &challenge) {
		return m.resolveChallenge(ctx, challenge.Method)
	}
	if err != nil {
		return err
	}
	return m.sessions.SaveSession(ctx, m.account, blob)
}

// resolveChallenge drives the out-of-band verification round trip: dispatch
// delivery, record the pending challenge, poll for the extracted code, submit
// it, persist the refreshed session.
func (m *Manager) resolveChallenge(ctx context.Context, method string) error {
	if err := m.client.RequestChallengeCode(ctx, method); err != nil {
		// One best-effort automatic resolution before giving up.
		blob, autoErr := m.client.AutoResolveChallenge(ctx)
		if autoErr != nil {
			return fmt.Errorf("challenge dispatch failed: %w", err)
		}
		logger.Log.WithField("account", m.account).Info("Challenge auto-resolved after dispatch failure")
		return m.sessions.SaveSession(ctx, m.account, blob)
	}

	since := m.clock.Now()
	record, err := m.challenges.CreateChallenge(ctx, m.account, method)
	if err != nil {
		return fmt.Errorf("record challenge: %w", err)
	}

	var code string
	waitErr := Wait(ctx, m.clock, m.pollEvery, m.waitLimit, func(ctx context.Context) (bool, error) {
		rec, err := m.challenges.LatestCode(ctx, m.account, since)
		if err != nil {
			return false, err
		}
		if rec == nil {
			return false, nil
		}
		code = rec.Code
		return true, nil
	})
	if errors.Is(waitErr, ErrWaitTimeout) {
		return ErrChallengeTimeout
	}
	if waitErr != nil {
		return waitErr
	}

	blob, err := m.client.SubmitChallengeCode(ctx, code)
	if err != nil {
		return &ChallengeSubmissionError{Reason: err.Error()}
	}
	if err := m.sessions.SaveSession(ctx, m.account, blob); err != nil {
		return err
	}
	if err := m.challenges.CompleteChallenge(ctx, record.ID); err != nil {
		return err
	}
	logger.Log.WithFields(map[string]interface{}{
		"account": m.account,
		"method":  method,
	}).Info("Challenge completed")
	return nil
}
