package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/config"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
)

// SiteContent is what the extraction service pulls off a vendor's website.
type SiteContent struct {
	Images   []string      `json:"images"`
	Packages []SitePackage `json:"packages"`
	Contact  SiteContact   `json:"contact"`
	Features []string      `json:"features"`
}

type SitePackage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int    `json:"price_cents"`
}

type SiteContact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.ScraperBaseURL,
		apiKey:  cfg.ScraperAPIKey,
		client:  httpclient.New(cfg.ScraperTimeout),
	}
}

func NewClientWithHTTP(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: baseURL, client: client}
}

// Extract pulls structured content from a vendor website.
func (c *Client) Extract(ctx context.Context, websiteURL string) (*SiteContent, error) {
	payload, err := json.Marshal(map[string]string{"url": websiteURL})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faults.FromTransport("scraper.extract", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.FromStatusCode("scraper.extract", resp.StatusCode)
	}

	var content SiteContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, faults.New(faults.ValidationFailure, "scraper.extract", err)
	}
	return &content, nil
}
