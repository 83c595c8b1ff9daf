package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/cache"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/research"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeSearcher struct {
	candidates []research.Candidate
	usage      *research.Usage
	calls      int
	err        error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]research.Candidate, *research.Usage, error) {
	f.calls++
	return f.candidates, f.usage, f.err
}

type fakeEntityStore struct {
	existing map[string]*Entity
	created  []*Entity
}

func key(name, city string) string {
	return listing.NormalizeKey(name) + "|" + listing.NormalizeKey(city)
}

func (f *fakeEntityStore) Create(ctx context.Context, e *Entity) error {
	f.created = append(f.created, e)
	if f.existing == nil {
		f.existing = make(map[string]*Entity)
	}
	f.existing[key(e.Name, e.City)] = e
	return nil
}

func (f *fakeEntityStore) FindByNameAndCity(ctx context.Context, name, city string) (*Entity, error) {
	if e, ok := f.existing[key(name, city)]; ok {
		return e, nil
	}
	return nil, ErrEntityNotFound
}

type fakeListingFinder struct {
	existing map[string]*listing.Listing
}

func (f *fakeListingFinder) FindByNameAndCity(ctx context.Context, name, city string) (*listing.Listing, error) {
	if l, ok := f.existing[key(name, city)]; ok {
		return l, nil
	}
	return nil, listing.ErrListingNotFound
}

type fakeQueue struct {
	enqueued []map[string]interface{}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queue string, payload map[string]interface{}, maxAttempts int) (*taskqueue.Task, error) {
	f.enqueued = append(f.enqueued, payload)
	return &taskqueue.Task{ID: uuid.New(), Queue: queue}, nil
}

func discoveryTask(payload map[string]interface{}) *taskqueue.Task {
	return &taskqueue.Task{ID: uuid.New(), Queue: taskqueue.QueueDiscovery, Payload: payload, MaxAttempts: 3}
}

func TestProcessCreatesEntitiesAndEnqueues(t *testing.T) {
	searcher := &fakeSearcher{
		candidates: []research.Candidate{
			{Name: "The Grand Pavilion", City: "Sydney", State: "NSW", Category: "venue"},
			{Name: "Harbourlight Estate", City: "Sydney", State: "NSW", Category: "venue"},
		},
		usage: &research.Usage{CostUSD: 0.5},
	}
	entities := &fakeEntityStore{}
	queue := &fakeQueue{}
	svc := NewService(searcher, entities, &fakeListingFinder{}, queue, cache.NewResponseCache(), 10, 3)

	outcome, err := svc.Process(context.Background(), discoveryTask(map[string]interface{}{
		"location": "Sydney NSW",
		"category": "venue",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entities.created) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities.created))
	}
	for _, e := range entities.created {
		if e.EnrichmentStatus != EnrichmentPending {
			t.Fatalf("entity created with status %s", e.EnrichmentStatus)
		}
		if e.APICostUSD != 0.25 {
			t.Fatalf("expected cost split 0.25, got %f", e.APICostUSD)
		}
	}
	if len(queue.enqueued) != 2 {
		t.Fatalf("expected 2 enrichment tasks, got %d", len(queue.enqueued))
	}
	if outcome.Result["created"] != 2 {
		t.Fatalf("unexpected metrics %+v", outcome.Result)
	}
}

func TestProcessSkipsKnownEntitiesAndListings(t *testing.T) {
	searcher := &fakeSearcher{candidates: []research.Candidate{
		{Name: "Known Entity", City: "Sydney"},
		{Name: "Known Listing", City: "Sydney"},
		{Name: "Fresh Venue", City: "Sydney"},
	}}
	entities := &fakeEntityStore{existing: map[string]*Entity{
		key("Known Entity", "Sydney"): {ID: uuid.New()},
	}}
	listings := &fakeListingFinder{existing: map[string]*listing.Listing{
		key("Known Listing", "Sydney"): {ID: uuid.New()},
	}}
	queue := &fakeQueue{}
	svc := NewService(searcher, entities, listings, queue, cache.NewResponseCache(), 10, 3)

	outcome, err := svc.Process(context.Background(), discoveryTask(map[string]interface{}{"query": "venues sydney"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Result["duplicates"] != 2 || outcome.Result["created"] != 1 {
		t.Fatalf("unexpected metrics %+v", outcome.Result)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("only new entities get enrichment tasks, got %d", len(queue.enqueued))
	}
}

func TestProcessUsesCacheOnRepeatQuery(t *testing.T) {
	searcher := &fakeSearcher{candidates: []research.Candidate{{Name: "Venue A", City: "Sydney"}}}
	entities := &fakeEntityStore{}
	svc := NewService(searcher, entities, &fakeListingFinder{}, &fakeQueue{}, cache.NewResponseCache(), 10, 3)

	for i := 0; i < 3; i++ {
		if _, err := svc.Process(context.Background(), discoveryTask(map[string]interface{}{"query": "venues sydney"})); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if searcher.calls != 1 {
		t.Fatalf("expected one external call across repeat queries, got %d", searcher.calls)
	}
}

func TestProcessPropagatesSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("vendor down")}
	svc := NewService(searcher, &fakeEntityStore{}, &fakeListingFinder{}, &fakeQueue{}, cache.NewResponseCache(), 10, 3)

	if _, err := svc.Process(context.Background(), discoveryTask(map[string]interface{}{"query": "q"})); err == nil {
		t.Fatal("expected search failure to propagate for retry handling")
	}
}
