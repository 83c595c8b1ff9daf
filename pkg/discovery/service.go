package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/cache"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/research"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

// SearchAPI is the discovery-search slice of the research vendor.
type SearchAPI interface {
	Search(ctx context.Context, query string, limit int) ([]research.Candidate, *research.Usage, error)
}

// EntityStore is the discovered-entity persistence the processor needs.
type EntityStore interface {
	Create(ctx context.Context, e *Entity) error
	FindByNameAndCity(ctx context.Context, name, city string) (*Entity, error)
}

// ListingFinder checks whether a candidate already graduated to a listing.
type ListingFinder interface {
	FindByNameAndCity(ctx context.Context, name, city string) (*listing.Listing, error)
}

// Enqueuer creates downstream tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload map[string]interface{}, maxAttempts int) (*taskqueue.Task, error)
}

type Service struct {
	searcher      SearchAPI
	entities      EntityStore
	listings      ListingFinder
	queue         Enqueuer
	cache         *cache.ResponseCache
	maxCandidates int
	maxAttempts   int
}

func NewService(searcher SearchAPI, entities EntityStore, listings ListingFinder, queue Enqueuer, responseCache *cache.ResponseCache, maxCandidates, maxAttempts int) *Service {
	return &Service{
		searcher:      searcher,
		entities:      entities,
		listings:      listings,
		queue:         queue,
		cache:         responseCache,
		maxCandidates: maxCandidates,
		maxAttempts:   maxAttempts,
	}
}

type cachedSearch struct {
	Candidates []research.Candidate `json:"candidates"`
	Usage      *research.Usage      `json:"usage,omitempty"`
}

// Process handles one discovery task: search (cache-backed), dedupe each
// candidate against known entities and listings, insert the new ones and
// enqueue one enrichment task apiece. Duplicates are skipped silently; they
// are the common case, not a fault.
func (s *Service) Process(ctx context.Context, task *taskqueue.Task) (*taskqueue.Outcome, error) {
	query := stringField(task.Payload, "query")
	location := stringField(task.Payload, "location")
	category := stringField(task.Payload, "category")
	if query == "" {
		if location == "" || category == "" {
			return nil, fmt.Errorf("discovery task missing query and location/category")
		}
		query = fmt.Sprintf("%s for weddings in %s", category, location)
	}

	result, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}

	perCandidateCost := 0.0
	if result.Usage != nil && len(result.Candidates) > 0 {
		perCandidateCost = result.Usage.CostUSD / float64(len(result.Candidates))
	}

	var created, duplicates, enqueued int
	for _, candidate := range result.Candidates {
		if candidate.Name == "" {
			continue
		}
		city := candidate.City
		if city == "" {
			city = candidate.Location
		}

		isDup, err := s.isDuplicate(ctx, candidate.Name, city)
		if err != nil {
			return nil, err
		}
		if isDup {
			duplicates++
			continue
		}

		entity := &Entity{
			ID:               uuid.New(),
			Name:             candidate.Name,
			City:             city,
			State:            candidate.State,
			Location:         candidate.Location,
			Category:         orDefault(candidate.Category, category),
			Website:          candidate.Website,
			EnrichmentStatus: EnrichmentPending,
			APICostUSD:       perCandidateCost,
			DiscoveredAt:     time.Now().UTC(),
		}
		if err := s.entities.Create(ctx, entity); err != nil {
			return nil, fmt.Errorf("insert discovered entity: %w", err)
		}
		created++

		if _, err := s.queue.Enqueue(ctx, taskqueue.QueueEnrichment, map[string]interface{}{
			"entity_id": entity.ID.String(),
			"name":      entity.Name,
			"city":      entity.City,
			"state":     entity.State,
			"category":  entity.Category,
			"website":   entity.Website,
		}, s.maxAttempts); err != nil {
			return nil, fmt.Errorf("enqueue enrichment task: %w", err)
		}
		enqueued++
	}

	logger.Log.WithFields(map[string]interface{}{
		"query":      query,
		"candidates": len(result.Candidates),
		"created":    created,
		"duplicates": duplicates,
	}).Info("Discovery task processed")

	return &taskqueue.Outcome{Result: map[string]interface{}{
		"candidates": len(result.Candidates),
		"created":    created,
		"duplicates": duplicates,
		"enqueued":   enqueued,
	}}, nil
}

// search consults the response cache before paying for an external call.
func (s *Service) search(ctx context.Context, query string) (*cachedSearch, error) {
	if payload, hit := s.cache.Get(query); hit {
		var cached cachedSearch
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		// A corrupt cache entry falls through to a fresh call.
	}

	candidates, usage, err := s.searcher.Search(ctx, query, s.maxCandidates)
	if err != nil {
		return nil, err
	}

	result := &cachedSearch{Candidates: candidates, Usage: usage}
	if payload, err := json.Marshal(result); err == nil {
		s.cache.Set(query, payload, cache.ClassDiscovery)
	}
	return result, nil
}

func (s *Service) isDuplicate(ctx context.Context, name, city string) (bool, error) {
	if _, err := s.entities.FindByNameAndCity(ctx, name, city); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrEntityNotFound) {
		return false, err
	}

	if _, err := s.listings.FindByNameAndCity(ctx, name, city); err == nil {
		return true, nil
	} else if !errors.Is(err, listing.ErrListingNotFound) {
		return false, err
	}
	return false, nil
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
