package listing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrListingNotFound = errors.New("listing not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Listing{}, &Media{}, &Package{})
}

// SlugTaken reports whether any listing already owns the slug.
func (r *Repository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Listing{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// FindByNameAndCity matches on the persisted title_key + city_key pair, so
// both sides of the comparison went through NormalizeKey.
func (r *Repository) FindByNameAndCity(ctx context.Context, name, city string) (*Listing, error) {
	var l Listing
	err := r.db.WithContext(ctx).
		Where("title_key = ? AND city_key = ?", NormalizeKey(name), NormalizeKey(city)).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var l Listing
	err := r.db.WithContext(ctx).Preload("Media").Preload("Packages").First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var listings []Listing
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&listings)
	return listings, result.Error
}
