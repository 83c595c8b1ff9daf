package discovery

import (
	"testing"

	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
)

// An entity saved with irregular internal whitespace must still be found by
// a lookup for the clean form, since both sides go through the same key.
func TestEntityKeysMatchLookupNormalization(t *testing.T) {
	e := &Entity{Name: "The  Grand Pavilion", City: " Sydney "}
	if err := e.BeforeSave(nil); err != nil {
		t.Fatalf("before save: %v", err)
	}

	if e.NameKey != listing.NormalizeKey("the grand pavilion") {
		t.Fatalf("name key %q does not match the lookup key", e.NameKey)
	}
	if e.CityKey != listing.NormalizeKey("sydney") {
		t.Fatalf("city key %q does not match the lookup key", e.CityKey)
	}
}
