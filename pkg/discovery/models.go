package discovery

import (
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"gorm.io/gorm"
)

const (
	EnrichmentPending    = "pending"
	EnrichmentProcessing = "processing"
	EnrichmentEnriched   = "enriched"
	EnrichmentFailed     = "failed"
)

// Entity is a business found by discovery search but not yet researched.
// EnrichmentStatus only ever advances; a force refresh enqueues new work
// instead of winding status back.
type Entity struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Name             string     `gorm:"column:name" json:"name"`
	NameKey          string     `gorm:"column:name_key;index:idx_entities_name_city_key" json:"-"`
	City             string     `gorm:"column:city;index" json:"city"`
	CityKey          string     `gorm:"column:city_key;index:idx_entities_name_city_key" json:"-"`
	State            string     `gorm:"column:state" json:"state"`
	Location         string     `gorm:"column:location" json:"location"`
	Category         string     `gorm:"column:category;index" json:"category"`
	Website          string     `gorm:"column:website" json:"website,omitempty"`
	EnrichmentStatus string     `gorm:"column:enrichment_status;index" json:"enrichment_status"`
	RecordID         *uuid.UUID `gorm:"type:uuid;column:record_id" json:"record_id,omitempty"`
	APICostUSD       float64    `gorm:"column:api_cost_usd" json:"api_cost_usd"`
	DiscoveredAt     time.Time  `gorm:"column:discovered_at" json:"discovered_at"`
	ResearchedAt     *time.Time `gorm:"column:researched_at" json:"researched_at,omitempty"`
}

func (Entity) TableName() string {
	return "discovered_entities"
}

// BeforeSave keeps the persisted lookup keys in step with Name and City so
// the duplicate query matches exactly what was stored.
func (e *Entity) BeforeSave(tx *gorm.DB) error {
	if e.Name != "" {
		e.NameKey = listing.NormalizeKey(e.Name)
	}
	if e.City != "" {
		e.CityKey = listing.NormalizeKey(e.City)
	}
	return nil
}
