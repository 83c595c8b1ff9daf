package listing

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Grand Pavilion", "the grand pavilion"},
		{"The  Grand Pavilion", "the grand pavilion"},
		{"  the grand\tpavilion  ", "the grand pavilion"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// A row saved with irregular internal whitespace must still be found by a
// lookup for the clean form, since both sides go through the same key.
func TestPersistedKeysMatchLookupNormalization(t *testing.T) {
	l := &Listing{Title: "The  Grand Pavilion", City: " Sydney "}
	if err := l.BeforeSave(nil); err != nil {
		t.Fatalf("before save: %v", err)
	}

	if l.TitleKey != NormalizeKey("the grand pavilion") {
		t.Fatalf("title key %q does not match the lookup key", l.TitleKey)
	}
	if l.CityKey != NormalizeKey("sydney") {
		t.Fatalf("city key %q does not match the lookup key", l.CityKey)
	}
}
