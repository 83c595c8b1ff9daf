package enrichment

import (
	"context"
	"testing"
)

type fakeSlugChecker struct {
	taken map[string]bool
}

func (f *fakeSlugChecker) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return f.taken[slug], nil
}

func TestCleanSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"The Grand Pavilion", "the-grand-pavilion"},
		{"Café  & Bar!", "caf-bar"},
		{"--already--slugged--", "already-slugged"},
		{"UPPER case 123", "upper-case-123"},
	}
	for _, tc := range cases {
		if got := cleanSlug(tc.in); got != tc.want {
			t.Errorf("cleanSlug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveSlugPicksFirstFreeCandidate(t *testing.T) {
	checker := &fakeSlugChecker{taken: map[string]bool{"a": true, "b": true}}

	slug, err := resolveSlug(context.Background(), checker, []string{"a", "b", "c"}, "Title", "City", "State")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "c" {
		t.Fatalf("got %q, want c", slug)
	}
}

func TestResolveSlugFallsBackToTitleCityState(t *testing.T) {
	checker := &fakeSlugChecker{taken: map[string]bool{"a": true, "b": true, "c": true}}

	slug, err := resolveSlug(context.Background(), checker, []string{"a", "b", "c"}, "Title", "City", "State")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "title-city-state" {
		t.Fatalf("got %q, want title-city-state", slug)
	}
}

func TestResolveSlugAppendsSuffixUntilUnique(t *testing.T) {
	checker := &fakeSlugChecker{taken: map[string]bool{
		"a": true, "b": true, "c": true,
		"title-city-state":   true,
		"title-city-state-1": true,
	}}

	slug, err := resolveSlug(context.Background(), checker, []string{"a", "b", "c"}, "Title", "City", "State")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "title-city-state-2" {
		t.Fatalf("got %q, want title-city-state-2", slug)
	}
}

func TestResolveSlugSkipsEmptyCandidates(t *testing.T) {
	checker := &fakeSlugChecker{}

	slug, err := resolveSlug(context.Background(), checker, []string{"!!!", "real-slug"}, "T", "C", "S")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "real-slug" {
		t.Fatalf("got %q, want real-slug", slug)
	}
}
