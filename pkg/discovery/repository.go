package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"gorm.io/gorm"
)

var ErrEntityNotFound = errors.New("discovered entity not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Entity{})
}

func (r *Repository) Create(ctx context.Context, e *Entity) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Entity, error) {
	var e Entity
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindByNameAndCity matches on the persisted name_key + city_key pair, so
// both sides of the comparison went through NormalizeKey.
func (r *Repository) FindByNameAndCity(ctx context.Context, name, city string) (*Entity, error) {
	var e Entity
	err := r.db.WithContext(ctx).
		Where("name_key = ? AND city_key = ?", listing.NormalizeKey(name), listing.NormalizeKey(city)).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateListingAndLink persists the finalized listing with its media and
// package rows and advances the entity, all in one transaction. A failure
// anywhere rolls back the whole unit, so an unlinked listing can never
// outlive the task that made it.
func (r *Repository) CreateListingAndLink(ctx context.Context, entityID uuid.UUID, l *listing.Listing, media []listing.Media, packages []listing.Package) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		if len(media) > 0 {
			if err := tx.Create(&media).Error; err != nil {
				return err
			}
		}
		if len(packages) > 0 {
			if err := tx.Create(&packages).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Entity{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"enrichment_status": EnrichmentEnriched,
			"record_id":         l.ID,
			"researched_at":     now,
		}).Error
	})
}

// MarkEnriched links the entity to its finalized record. Status only moves
// forward.
func (r *Repository) MarkEnriched(ctx context.Context, id, recordID uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&Entity{}).Where("id = ?", id).Updates(map[string]interface{}{
		"enrichment_status": EnrichmentEnriched,
		"record_id":         recordID,
		"researched_at":     now,
	}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Entity{}).Where("id = ?", id).
		Update("enrichment_status", EnrichmentFailed).Error
}

func (r *Repository) List(ctx context.Context, status string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("discovered_at desc").Limit(limit)
	if status != "" {
		query = query.Where("enrichment_status = ?", status)
	}
	var entities []Entity
	result := query.Find(&entities)
	return entities, result.Error
}
