package listing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing is the finalized business record. The enrichment processor is its
// only writer; a refresh produces a new record rather than editing children.
type Listing struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Slug          string                      `gorm:"column:slug;uniqueIndex" json:"slug"`
	Title         string                      `gorm:"column:title" json:"title"`
	TitleKey      string                      `gorm:"column:title_key;index:idx_listings_title_city_key" json:"-"`
	CityKey       string                      `gorm:"column:city_key;index:idx_listings_title_city_key" json:"-"`
	Description   string                      `gorm:"column:description" json:"description"`
	Category      string                      `gorm:"column:category;index" json:"category"`
	Address       string                      `gorm:"column:address" json:"address"`
	City          string                      `gorm:"column:city;index" json:"city"`
	State         string                      `gorm:"column:state" json:"state"`
	Latitude      float64                     `gorm:"column:latitude" json:"latitude"`
	Longitude     float64                     `gorm:"column:longitude" json:"longitude"`
	PriceMinCents int                         `gorm:"column:price_min_cents" json:"price_min_cents"`
	PriceMaxCents int                         `gorm:"column:price_max_cents" json:"price_max_cents"`
	PriceCurrency string                      `gorm:"column:price_currency" json:"price_currency"`
	MinGuests     int                         `gorm:"column:min_guests" json:"min_guests"`
	MaxGuests     int                         `gorm:"column:max_guests" json:"max_guests"`
	Amenities     datatypes.JSONSlice[string] `gorm:"column:amenities" json:"amenities"`
	Tags          datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	ContactEmail  string                      `gorm:"column:contact_email" json:"contact_email,omitempty"`
	ContactPhone  string                      `gorm:"column:contact_phone" json:"contact_phone,omitempty"`
	Website       string                      `gorm:"column:website" json:"website,omitempty"`
	CreatedAt     time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at" json:"updated_at"`

	Media    []Media   `gorm:"foreignKey:ListingID" json:"media,omitempty"`
	Packages []Package `gorm:"foreignKey:ListingID" json:"packages,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeSave keeps the persisted lookup keys in step with Title and City so
// the duplicate query matches exactly what was stored, whatever whitespace
// the source data carried.
func (l *Listing) BeforeSave(tx *gorm.DB) error {
	l.TitleKey = NormalizeKey(l.Title)
	l.CityKey = NormalizeKey(l.City)
	return nil
}

// Media rows are created once at enrichment time and never mutated.
type Media struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	ListingID uuid.UUID `gorm:"type:uuid;column:listing_id;index" json:"listing_id"`
	URL       string    `gorm:"column:url" json:"url"`
	SourceURL string    `gorm:"column:source_url" json:"source_url"`
	Width     int       `gorm:"column:width" json:"width"`
	Height    int       `gorm:"column:height" json:"height"`
	Position  int       `gorm:"column:position" json:"position"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Media) TableName() string {
	return "listing_media"
}

type Package struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	ListingID   uuid.UUID `gorm:"type:uuid;column:listing_id;index" json:"listing_id"`
	Name        string    `gorm:"column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	PriceCents  int       `gorm:"column:price_cents" json:"price_cents"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Package) TableName() string {
	return "listing_packages"
}

// NormalizeKey lowercases and collapses whitespace so "The  Grand Pavilion"
// and "the grand pavilion" dedupe against each other.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
