package enrichment

import (
	"context"
	"fmt"
	"strings"
)

// SlugChecker reports whether a slug is already owned by a listing.
type SlugChecker interface {
	SlugTaken(ctx context.Context, slug string) (bool, error)
}

// cleanSlug reduces arbitrary text to the slug charset: lowercase letters,
// digits and single hyphens.
func cleanSlug(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// resolveSlug walks the vendor's ranked candidates and takes the first free
// one. When every candidate is taken it falls back to title-city-state with a
// numeric suffix; the loop terminates because a finite table cannot occupy
// every suffix.
func resolveSlug(ctx context.Context, checker SlugChecker, candidates []string, title, city, state string) (string, error) {
	for _, candidate := range candidates {
		slug := cleanSlug(candidate)
		if slug == "" {
			continue
		}
		taken, err := checker.SlugTaken(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
	}

	base := cleanSlug(fmt.Sprintf("%s %s %s", title, city, state))
	if base == "" {
		return "", fmt.Errorf("cannot derive a slug from empty title")
	}

	taken, err := checker.SlugTaken(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}

	for i := 1; ; i++ {
		slug := fmt.Sprintf("%s-%d", base, i)
		taken, err := checker.SlugTaken(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
	}
}
