package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/discovery"
	"github.com/roland-id-au/vows-social-sub000/pkg/images"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/research"
	"github.com/roland-id-au/vows-social-sub000/pkg/scraper"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeResearcher struct {
	result *research.VendorResearch
	err    error
	calls  int
}

func (f *fakeResearcher) Research(ctx context.Context, name, location, category string) (*research.VendorResearch, *research.Usage, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	// Return a copy, the service mutates it during merge.
	r := *f.result
	return &r, nil, nil
}

type fakeExtractor struct {
	content *scraper.SiteContent
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, websiteURL string) (*scraper.SiteContent, error) {
	f.calls++
	if f.content == nil {
		return &scraper.SiteContent{}, nil
	}
	return f.content, nil
}

type fakeEntities struct {
	entity     *discovery.Entity
	enrichedTo *uuid.UUID
	failed     bool
	linkErr    error
	created    *listing.Listing
	media      []listing.Media
	packages   []listing.Package
}

func (f *fakeEntities) Get(ctx context.Context, id uuid.UUID) (*discovery.Entity, error) {
	return f.entity, nil
}

func (f *fakeEntities) CreateListingAndLink(ctx context.Context, entityID uuid.UUID, l *listing.Listing, media []listing.Media, packages []listing.Package) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.created = l
	f.media = media
	f.packages = packages
	f.enrichedTo = &l.ID
	return nil
}

func (f *fakeEntities) MarkEnriched(ctx context.Context, id, recordID uuid.UUID) error {
	f.enrichedTo = &recordID
	return nil
}

func (f *fakeEntities) MarkFailed(ctx context.Context, id uuid.UUID) error {
	f.failed = true
	return nil
}

type fakeListings struct {
	existing *listing.Listing
	taken    map[string]bool
}

func (f *fakeListings) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return f.taken[slug], nil
}

func (f *fakeListings) FindByNameAndCity(ctx context.Context, name, city string) (*listing.Listing, error) {
	if f.existing != nil {
		return f.existing, nil
	}
	return nil, listing.ErrListingNotFound
}

type fakeGate struct {
	accept int
}

func (f *fakeGate) EvaluateBatch(ctx context.Context, urls []string, destPrefix string, maxImages int) []images.StoredImage {
	n := f.accept
	if n > len(urls) {
		n = len(urls)
	}
	out := make([]images.StoredImage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, images.StoredImage{SourceURL: urls[i], StoredURL: "https://cdn.example.com/" + destPrefix, Width: 800, Height: 600})
	}
	return out
}

type fakeQueue struct {
	enqueued []map[string]interface{}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queue string, payload map[string]interface{}, maxAttempts int) (*taskqueue.Task, error) {
	f.enqueued = append(f.enqueued, payload)
	return &taskqueue.Task{ID: uuid.New(), Queue: queue}, nil
}

func testEntity() *discovery.Entity {
	return &discovery.Entity{
		ID:       uuid.New(),
		Name:     "The Grand Pavilion",
		City:     "Sydney",
		State:    "NSW",
		Category: "venue",
	}
}

func testResearch() *research.VendorResearch {
	return &research.VendorResearch{
		Title:          "The Grand Pavilion",
		Description:    "A harbourside wedding venue.",
		City:           "Sydney",
		State:          "NSW",
		SlugCandidates: []string{"the-grand-pavilion"},
		ImageURLs: []string{
			"https://img.example.com/1.jpg",
			"https://img.example.com/2.jpg",
			"https://img.example.com/3.jpg",
			"https://img.example.com/4.jpg",
		},
		Packages: []research.PackageInfo{{Name: "Classic", PriceCents: 500000}},
	}
}

func enrichmentTask(entityID uuid.UUID, attempts int) *taskqueue.Task {
	return &taskqueue.Task{
		ID:          uuid.New(),
		Queue:       taskqueue.QueueEnrichment,
		Payload:     map[string]interface{}{"entity_id": entityID.String()},
		Attempts:    attempts,
		MaxAttempts: 3,
	}
}

func TestProcessCreatesListingWithMediaAndEnqueuesPublishing(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	listings := &fakeListings{}
	queue := &fakeQueue{}
	svc := NewService(&fakeResearcher{result: testResearch()}, &fakeExtractor{}, entities, listings, &fakeGate{accept: 3}, queue, []string{"webhook", "events"}, 12, 3)

	outcome, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Skipped {
		t.Fatal("fresh entity must not be skipped")
	}

	if entities.created == nil || entities.created.Slug != "the-grand-pavilion" {
		t.Fatalf("listing not created with resolved slug: %+v", entities.created)
	}
	if len(entities.media) != 3 {
		t.Fatalf("expected 3 media rows, got %d", len(entities.media))
	}
	for i, m := range entities.media {
		if m.Position != i {
			t.Fatalf("media order not preserved at %d", i)
		}
	}
	if len(entities.packages) != 1 {
		t.Fatalf("expected 1 package row, got %d", len(entities.packages))
	}

	if entities.enrichedTo == nil || *entities.enrichedTo != entities.created.ID {
		t.Fatal("entity must be linked to the new record")
	}

	if len(queue.enqueued) != 1 {
		t.Fatalf("expected exactly one publishing task, got %d", len(queue.enqueued))
	}
	if queue.enqueued[0]["record_id"] != entities.created.ID.String() {
		t.Fatal("publishing task must reference the new record")
	}
}

func TestProcessSkipsWhenListingExists(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	existing := &listing.Listing{ID: uuid.New(), Slug: "the-grand-pavilion"}
	listings := &fakeListings{existing: existing}
	queue := &fakeQueue{}
	svc := NewService(&fakeResearcher{result: testResearch()}, &fakeExtractor{}, entities, listings, &fakeGate{}, queue, nil, 12, 3)

	outcome, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Skipped {
		t.Fatal("duplicate entity must produce a skipped outcome")
	}
	if entities.created != nil {
		t.Fatal("no new listing may be created for a duplicate")
	}
	if entities.enrichedTo == nil || *entities.enrichedTo != existing.ID {
		t.Fatal("duplicate entity must be linked to the existing record")
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("skipped enrichment must not enqueue publishing")
	}
}

func TestProcessMergesWebsiteContent(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	listings := &fakeListings{}
	extractor := &fakeExtractor{content: &scraper.SiteContent{
		Packages: []scraper.SitePackage{{Name: "Premium", PriceCents: 900000}},
	}}
	svc := NewService(&fakeResearcher{result: testResearch()}, extractor, entities, listings, &fakeGate{}, &fakeQueue{}, nil, 12, 3)

	task := enrichmentTask(entities.entity.ID, 1)
	task.Payload["website"] = "https://grandpavilion.example.com"
	if _, err := svc.Process(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extractor.calls != 1 {
		t.Fatal("website present in payload must trigger extraction")
	}
	if len(entities.packages) != 2 {
		t.Fatalf("merged package missing, got %d", len(entities.packages))
	}
}

func TestProcessNoWebsiteSkipsExtraction(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	extractor := &fakeExtractor{}
	svc := NewService(&fakeResearcher{result: testResearch()}, extractor, entities, &fakeListings{}, &fakeGate{}, &fakeQueue{}, nil, 12, 3)

	if _, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extractor.calls != 0 {
		t.Fatal("extraction must be skipped without a website")
	}
}

func TestProcessMarksEntityFailedOnFinalAttempt(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	researcher := &fakeResearcher{err: faults.FromStatusCode("research.deep", 503)}
	svc := NewService(researcher, &fakeExtractor{}, entities, &fakeListings{}, &fakeGate{}, &fakeQueue{}, nil, 12, 3)

	// Attempt 2 of 3: still retryable, entity must not be marked failed.
	if _, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 2)); err == nil {
		t.Fatal("expected error")
	}
	if entities.failed {
		t.Fatal("entity must survive a retryable mid-run failure")
	}

	// Attempt 3 of 3: exhausted.
	if _, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 3)); err == nil {
		t.Fatal("expected error")
	}
	if !entities.failed {
		t.Fatal("exhausted retries must mark the entity failed")
	}
}

func TestProcessForceRefreshBypassesShortCircuit(t *testing.T) {
	entities := &fakeEntities{entity: testEntity()}
	listings := &fakeListings{existing: &listing.Listing{ID: uuid.New()}, taken: map[string]bool{"the-grand-pavilion": true}}
	svc := NewService(&fakeResearcher{result: testResearch()}, &fakeExtractor{}, entities, listings, &fakeGate{}, &fakeQueue{}, nil, 12, 3)

	task := enrichmentTask(entities.entity.ID, 1)
	task.Payload["force_refresh"] = true
	outcome, err := svc.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Skipped {
		t.Fatal("force refresh must not short-circuit")
	}
	if entities.created == nil {
		t.Fatal("force refresh must write a fresh listing")
	}
	if entities.created.Slug != "the-grand-pavilion-sydney-nsw" {
		t.Fatalf("refresh slug must not collide, got %q", entities.created.Slug)
	}
}

func TestProcessRelinkedEntityOnlyReenqueuesPublishing(t *testing.T) {
	recordID := uuid.New()
	entity := testEntity()
	entity.RecordID = &recordID
	entities := &fakeEntities{entity: entity}
	researcher := &fakeResearcher{result: testResearch()}
	queue := &fakeQueue{}
	svc := NewService(researcher, &fakeExtractor{}, entities, &fakeListings{}, &fakeGate{}, queue, []string{"webhook"}, 12, 3)

	outcome, err := svc.Process(context.Background(), enrichmentTask(entity.ID, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Skipped {
		t.Fatal("already-linked entity must produce a skipped outcome")
	}
	if researcher.calls != 0 {
		t.Fatal("already-linked entity must not be researched again")
	}
	if entities.created != nil {
		t.Fatal("already-linked entity must not mint a second listing")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0]["record_id"] != recordID.String() {
		t.Fatalf("expected one publishing task for the linked record, got %v", queue.enqueued)
	}
}

func TestProcessLinkFailureEnqueuesNothing(t *testing.T) {
	entities := &fakeEntities{entity: testEntity(), linkErr: errors.New("connection reset")}
	queue := &fakeQueue{}
	svc := NewService(&fakeResearcher{result: testResearch()}, &fakeExtractor{}, entities, &fakeListings{}, &fakeGate{}, queue, nil, 12, 3)

	if _, err := svc.Process(context.Background(), enrichmentTask(entities.entity.ID, 1)); err == nil {
		t.Fatal("expected error when the listing write fails")
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("a failed write must not enqueue publishing")
	}
}
