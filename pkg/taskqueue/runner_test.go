package taskqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// memStore implements Store with the same claim semantics the SQL repository
// provides: a single atomic select-and-flip guarded here by a mutex.
type memStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	now   func() time.Time
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uuid.UUID]*Task), now: time.Now}
}

func (s *memStore) add(queue string, attempts, maxAttempts int) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &Task{
		ID:           uuid.New(),
		Queue:        queue,
		Status:       StatusPending,
		Attempts:     attempts,
		MaxAttempts:  maxAttempts,
		ScheduledFor: s.now().Add(-time.Second),
		CreatedAt:    s.now(),
	}
	s.tasks[task.ID] = task
	return task
}

func (s *memStore) ClaimNext(ctx context.Context, queue string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *Task
	for _, t := range s.tasks {
		if t.Queue != queue || t.Status != StatusPending || t.ScheduledFor.After(s.now()) {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = StatusProcessing
	oldest.Attempts++
	claimed := *oldest
	return &claimed, nil
}

func (s *memStore) Complete(ctx context.Context, id uuid.UUID, status string, result map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].Status = status
	return nil
}

func (s *memStore) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = StatusPending
	t.ScheduledFor = at
	t.ErrorMessage = errMsg
	return nil
}

func (s *memStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = StatusFailed
	t.ErrorMessage = errMsg
	return nil
}

func TestRunOnceEmptyQueueIsCleanNoOp(t *testing.T) {
	runner := NewRunner(newMemStore())
	report := runner.RunOnce(context.Background(), QueueDiscovery, func(ctx context.Context, task *Task) (*Outcome, error) {
		t.Fatal("processor must not run without a claim")
		return nil, nil
	})
	if !report.Success || report.Claimed {
		t.Fatalf("expected clean no-op, got %+v", report)
	}
}

func TestRunOnceSuccess(t *testing.T) {
	store := newMemStore()
	task := store.add(QueueEnrichment, 0, 3)

	runner := NewRunner(store)
	report := runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		return &Outcome{Result: map[string]interface{}{"images": 3}}, nil
	})

	if !report.Success || report.Status != StatusCompleted {
		t.Fatalf("unexpected report %+v", report)
	}
	if store.tasks[task.ID].Status != StatusCompleted {
		t.Fatal("task row not completed")
	}
}

func TestRunOnceSkippedOutcome(t *testing.T) {
	store := newMemStore()
	task := store.add(QueueEnrichment, 0, 3)

	runner := NewRunner(store)
	report := runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		return &Outcome{Skipped: true}, nil
	})

	if report.Status != StatusSkipped || store.tasks[task.ID].Status != StatusSkipped {
		t.Fatalf("duplicate short-circuit must mark skipped, got %+v", report)
	}
}

func TestRunOnceTransientFailureReschedules(t *testing.T) {
	store := newMemStore()
	// Claimed once before: retry delay must follow the attempts=1 schedule.
	task := store.add(QueueEnrichment, 0, 3)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runner := NewRunner(store)
	runner.SetClock(func() time.Time { return now })

	report := runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		return nil, faults.FromStatusCode("research.deep", 503)
	})

	if report.Status != StatusPending {
		t.Fatalf("expected reschedule, got %+v", report)
	}
	row := store.tasks[task.ID]
	want := now.Add(10 * time.Minute)
	if !row.ScheduledFor.Equal(want) {
		t.Fatalf("rescheduled for %s, want %s", row.ScheduledFor, want)
	}
	if row.ErrorMessage == "" {
		t.Fatal("error message must be recorded")
	}
}

func TestRunOnceExhaustedAttemptsTerminal(t *testing.T) {
	store := newMemStore()
	task := store.add(QueueEnrichment, 2, 3) // claim will make it attempt 3 of 3

	runner := NewRunner(store)
	report := runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		return nil, faults.FromStatusCode("research.deep", 503)
	})

	if report.Status != StatusFailed || store.tasks[task.ID].Status != StatusFailed {
		t.Fatalf("expected terminal failure at max attempts, got %+v", report)
	}
}

func TestRunOnceNonRetryableTerminal(t *testing.T) {
	store := newMemStore()
	task := store.add(QueueEnrichment, 0, 3)

	runner := NewRunner(store)
	runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		return nil, faults.FromStatusCode("research.deep", 401)
	})

	if store.tasks[task.ID].Status != StatusFailed {
		t.Fatal("auth failures must be terminal on first attempt")
	}
}

func TestRunOncePanicIsAbsorbed(t *testing.T) {
	store := newMemStore()
	task := store.add(QueueEnrichment, 2, 3)

	runner := NewRunner(store)
	report := runner.RunOnce(context.Background(), QueueEnrichment, func(ctx context.Context, task *Task) (*Outcome, error) {
		panic("bad payload")
	})

	if !report.Success {
		t.Fatal("a processor panic must not fail the invocation")
	}
	if store.tasks[task.ID].Status != StatusFailed {
		t.Fatal("panicked task must be recorded on its own row")
	}
}

func TestConcurrentClaimsNeverShareATask(t *testing.T) {
	store := newMemStore()
	const n = 20
	for i := 0; i < n; i++ {
		store.add(QueueDiscovery, 0, 3)
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := store.ClaimNext(context.Background(), QueueDiscovery)
			if err != nil || task == nil {
				return
			}
			mu.Lock()
			seen[task.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected all %d tasks claimed exactly once, got %d distinct", n, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("task %s claimed %d times", id, count)
		}
	}
}

func TestTruncateErrorBound(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	if got := truncateError(string(long)); len(got) != maxErrorMessageLen {
		t.Fatalf("expected truncation to %d, got %d", maxErrorMessageLen, len(got))
	}
	if truncateError("short") != "short" {
		t.Fatal("short messages must pass through")
	}
}
