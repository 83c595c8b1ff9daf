package enrichment

import (
	"strings"

	"github.com/roland-id-au/vows-social-sub000/pkg/research"
	"github.com/roland-id-au/vows-social-sub000/pkg/scraper"
)

// mergeSiteContent folds website-extraction results into the deep-research
// result. The merge is strictly additive and the research source wins every
// conflict: images union (de-duplicated, research order first), packages
// added only under new names, contact and amenity fields filled only when
// research left them empty.
func mergeSiteContent(primary *research.VendorResearch, site *scraper.SiteContent) {
	if site == nil {
		return
	}

	seen := make(map[string]struct{}, len(primary.ImageURLs))
	for _, url := range primary.ImageURLs {
		seen[url] = struct{}{}
	}
	for _, url := range site.Images {
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		primary.ImageURLs = append(primary.ImageURLs, url)
	}

	names := make(map[string]struct{}, len(primary.Packages))
	for _, p := range primary.Packages {
		names[strings.ToLower(p.Name)] = struct{}{}
	}
	for _, p := range site.Packages {
		if p.Name == "" {
			continue
		}
		if _, dup := names[strings.ToLower(p.Name)]; dup {
			continue
		}
		names[strings.ToLower(p.Name)] = struct{}{}
		primary.Packages = append(primary.Packages, research.PackageInfo{
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
		})
	}

	if primary.Contact.Email == "" {
		primary.Contact.Email = site.Contact.Email
	}
	if primary.Contact.Phone == "" {
		primary.Contact.Phone = site.Contact.Phone
	}

	if len(primary.Amenities) == 0 {
		primary.Amenities = append(primary.Amenities, site.Features...)
	}
}
