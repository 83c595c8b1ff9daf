package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// ResearchAPI is the deep-research slice of the vendor client.
type ResearchAPI interface {
	Research(ctx context.Context, name, location, category string) (*research.VendorResearch, *research.Usage, error)
}

type SiteExtractor interface {
	Extract(ctx context.Context, websiteURL string) (*scraper.SiteContent, error)
}

type EntityStore interface {
	Get(ctx context.Context, id uuid.UUID) (*discovery.Entity, error)
	CreateListingAndLink(ctx context.Context, entityID uuid.UUID, l *listing.Listing, media []listing.Media, packages []listing.Package) error
	MarkEnriched(ctx context.Context, id, recordID uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type ListingStore interface {
	SlugTaken(ctx context.Context, slug string) (bool, error)
	FindByNameAndCity(ctx context.Context, name, city string) (*listing.Listing, error)
}

type ImageGate interface {
	EvaluateBatch(ctx context.Context, urls []string, destPrefix string, maxImages int) []images.StoredImage
}

type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload map[string]interface{}, maxAttempts int) (*taskqueue.Task, error)
}

type Service struct {
	researcher  ResearchAPI
	extractor   SiteExtractor
	entities    EntityStore
	listings    ListingStore
	gate        ImageGate
	queue       Enqueuer
	channels    []string
	maxImages   int
	maxAttempts int
}

func NewService(researcher ResearchAPI, extractor SiteExtractor, entities EntityStore, listings ListingStore, gate ImageGate, queue Enqueuer, channels []string, maxImages, maxAttempts int) *Service {
	return &Service{
		researcher:  researcher,
		extractor:   extractor,
		entities:    entities,
		listings:    listings,
		gate:        gate,
		queue:       queue,
		channels:    channels,
		maxImages:   maxImages,
		maxAttempts: maxAttempts,
	}
}

// Process enriches one discovered entity into a finalized listing. The unit
// is all-or-nothing up to persistence: any external or storage failure aborts
// before a partial listing exists, and the queue's retry policy takes over.
func (s *Service) Process(ctx context.Context, task *taskqueue.Task) (*taskqueue.Outcome, error) {
	entityID, err := uuid.Parse(stringField(task.Payload, "entity_id"))
	if err != nil {
		return nil, fmt.Errorf("enrichment task has invalid entity_id: %w", err)
	}

	entity, err := s.entities.Get(ctx, entityID)
	if err != nil {
		return nil, s.terminalWrap(ctx, task, entityID, fmt.Errorf("load entity: %w", err))
	}

	force := boolField(task.Payload, "force_refresh")

	// A retry after the publishing enqueue failed must not research or write
	// again; the already-linked record only needs its publishing task.
	if !force && entity.RecordID != nil {
		if _, err := s.queue.Enqueue(ctx, taskqueue.QueuePublishing, map[string]interface{}{
			"record_id": entity.RecordID.String(),
			"channels":  s.channels,
		}, s.maxAttempts); err != nil {
			return nil, fmt.Errorf("enqueue publishing task: %w", err)
		}
		return &taskqueue.Outcome{Skipped: true, Result: map[string]interface{}{
			"linked_record": entity.RecordID.String(),
		}}, nil
	}

	// Anti-duplication guarantee: an entity whose business already has a
	// listing links to it and skips, creating nothing.
	if !force {
		if existing, err := s.listings.FindByNameAndCity(ctx, entity.Name, entity.City); err == nil {
			if err := s.entities.MarkEnriched(ctx, entity.ID, existing.ID); err != nil {
				return nil, fmt.Errorf("link entity to existing listing: %w", err)
			}
			logger.Log.WithFields(map[string]interface{}{
				"entity_id":  entity.ID.String(),
				"listing_id": existing.ID.String(),
			}).Info("Entity matched existing listing, skipping enrichment")
			return &taskqueue.Outcome{Skipped: true, Result: map[string]interface{}{
				"linked_record": existing.ID.String(),
			}}, nil
		} else if !errors.Is(err, listing.ErrListingNotFound) {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
	}

	location := strings.TrimSpace(entity.City + " " + entity.State)
	result, _, err := s.researcher.Research(ctx, entity.Name, location, entity.Category)
	if err != nil {
		return nil, s.terminalWrap(ctx, task, entityID, err)
	}

	website := orDefault(stringField(task.Payload, "website"), result.Contact.Website)
	if website != "" {
		site, err := s.extractor.Extract(ctx, website)
		if err != nil {
			return nil, s.terminalWrap(ctx, task, entityID, err)
		}
		mergeSiteContent(result, site)
	}

	slug, err := resolveSlug(ctx, s.listings, result.SlugCandidates, result.Title, orDefault(result.City, entity.City), orDefault(result.State, entity.State))
	if err != nil {
		return nil, s.terminalWrap(ctx, task, entityID, err)
	}

	accepted := s.gate.EvaluateBatch(ctx, result.ImageURLs, slug, s.maxImages)
	if len(accepted) == 0 && len(result.ImageURLs) > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"entity_id":  entity.ID.String(),
			"candidates": len(result.ImageURLs),
		}).Warn("No candidate image survived the quality gate")
	}

	record := buildListing(slug, entity, result, website)
	media := buildMedia(record.ID, accepted)
	packages := buildPackages(record.ID, result.Packages)

	// Listing rows and the entity link commit together, so a mid-write
	// failure leaves nothing for a retry to duplicate.
	if err := s.entities.CreateListingAndLink(ctx, entity.ID, record, media, packages); err != nil {
		return nil, s.terminalWrap(ctx, task, entityID, fmt.Errorf("persist listing: %w", err))
	}

	if _, err := s.queue.Enqueue(ctx, taskqueue.QueuePublishing, map[string]interface{}{
		"record_id": record.ID.String(),
		"channels":  s.channels,
	}, s.maxAttempts); err != nil {
		return nil, fmt.Errorf("enqueue publishing task: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"entity_id":  entity.ID.String(),
		"listing_id": record.ID.String(),
		"slug":       slug,
		"images":     len(accepted),
	}).Info("Entity enriched")

	return &taskqueue.Outcome{Result: map[string]interface{}{
		"record_id":        record.ID.String(),
		"slug":             slug,
		"images_candidate": len(result.ImageURLs),
		"images_accepted":  len(accepted),
		"packages":         len(packages),
	}}, nil
}

// terminalWrap marks the entity failed when this error will not be retried,
// either because its kind is fatal or because attempts are exhausted.
func (s *Service) terminalWrap(ctx context.Context, task *taskqueue.Task, entityID uuid.UUID, err error) error {
	kind := faults.KindOf(err)
	if !faults.Retryable(kind) || task.Attempts >= task.MaxAttempts {
		if markErr := s.entities.MarkFailed(ctx, entityID); markErr != nil {
			logger.Log.WithError(markErr).WithField("entity_id", entityID.String()).Error("Failed to mark entity failed")
		}
	}
	return err
}

func buildListing(slug string, entity *discovery.Entity, r *research.VendorResearch, website string) *listing.Listing {
	now := time.Now().UTC()
	return &listing.Listing{
		ID:            uuid.New(),
		Slug:          slug,
		Title:         r.Title,
		Description:   r.Description,
		Category:      entity.Category,
		Address:       r.Address,
		City:          orDefault(r.City, entity.City),
		State:         orDefault(r.State, entity.State),
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		PriceMinCents: r.Price.MinCents,
		PriceMaxCents: r.Price.MaxCents,
		PriceCurrency: orDefault(r.Price.Currency, "AUD"),
		MinGuests:     r.Capacity.MinGuests,
		MaxGuests:     r.Capacity.MaxGuests,
		Amenities:     r.Amenities,
		Tags:          r.Tags,
		ContactEmail:  r.Contact.Email,
		ContactPhone:  r.Contact.Phone,
		Website:       website,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func buildMedia(listingID uuid.UUID, accepted []images.StoredImage) []listing.Media {
	media := make([]listing.Media, 0, len(accepted))
	for i, img := range accepted {
		media = append(media, listing.Media{
			ID:        uuid.New(),
			ListingID: listingID,
			URL:       img.StoredURL,
			SourceURL: img.SourceURL,
			Width:     img.Width,
			Height:    img.Height,
			Position:  i,
			CreatedAt: time.Now().UTC(),
		})
	}
	return media
}

func buildPackages(listingID uuid.UUID, infos []research.PackageInfo) []listing.Package {
	packages := make([]listing.Package, 0, len(infos))
	for _, p := range infos {
		if p.Name == "" {
			continue
		}
		packages = append(packages, listing.Package{
			ID:          uuid.New(),
			ListingID:   listingID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return packages
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func boolField(payload map[string]interface{}, key string) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return false
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
