package research

// Candidate is one business surfaced by the discovery search.
type Candidate struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	City     string `json:"city"`
	State    string `json:"state"`
	Category string `json:"category"`
	Website  string `json:"website,omitempty"`
}

// Usage carries billing metrics when the vendor reports them.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

type PriceRange struct {
	MinCents int    `json:"min_cents"`
	MaxCents int    `json:"max_cents"`
	Currency string `json:"currency"`
}

type CapacityRange struct {
	MinGuests int `json:"min_guests"`
	MaxGuests int `json:"max_guests"`
}

type PackageInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int    `json:"price_cents"`
}

type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// VendorResearch is the deep-research response for a single business.
type VendorResearch struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Address        string        `json:"address"`
	City           string        `json:"city"`
	State          string        `json:"state"`
	Latitude       float64       `json:"latitude"`
	Longitude      float64       `json:"longitude"`
	Price          PriceRange    `json:"price"`
	Capacity       CapacityRange `json:"capacity"`
	Amenities      []string      `json:"amenities"`
	Tags           []string      `json:"tags"`
	Packages       []PackageInfo `json:"packages"`
	SlugCandidates []string      `json:"slug_candidates"`
	ImageURLs      []string      `json:"image_urls"`
	Contact        Contact       `json:"contact"`
}
