package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/config"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
	"golang.org/x/oauth2/clientcredentials"
)

// Client talks to the discovery-search and deep-research vendor API. Request
// failures are classified here, at the call boundary, from the status code;
// nothing downstream inspects message text.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient prefers OAuth2 client-credentials auth when configured and falls
// back to a static bearer key otherwise.
func NewClient(cfg *config.Config) *Client {
	var client *http.Client
	if cfg.ResearchOAuthClientID != "" && cfg.ResearchOAuthTokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ResearchOAuthClientID,
			ClientSecret: cfg.ResearchOAuthClientSecret,
			TokenURL:     cfg.ResearchOAuthTokenURL,
		}
		client = cc.Client(context.Background())
		client.Timeout = cfg.ResearchTimeout
	} else {
		client = httpclient.New(cfg.ResearchTimeout)
	}

	return &Client{
		baseURL: cfg.ResearchBaseURL,
		apiKey:  cfg.ResearchAPIKey,
		client:  client,
	}
}

// NewClientWithHTTP wires an explicit transport, used by tests.
func NewClientWithHTTP(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: baseURL, client: client}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Candidates []Candidate `json:"candidates"`
	Usage      *Usage      `json:"usage,omitempty"`
}

// Search runs a free-text discovery query and returns a bounded candidate
// list plus usage metrics when available.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Candidate, *Usage, error) {
	var resp searchResponse
	if err := c.post(ctx, "/v1/discovery/search", "research.search", searchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp.Candidates) > limit && limit > 0 {
		resp.Candidates = resp.Candidates[:limit]
	}
	return resp.Candidates, resp.Usage, nil
}

type researchRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Category string `json:"category"`
}

type researchResponse struct {
	Result *VendorResearch `json:"result"`
	Usage  *Usage          `json:"usage,omitempty"`
}

// Research runs the deep-research pipeline for one business.
func (c *Client) Research(ctx context.Context, name, location, category string) (*VendorResearch, *Usage, error) {
	var resp researchResponse
	if err := c.post(ctx, "/v1/research/vendor", "research.deep", researchRequest{Name: name, Location: location, Category: category}, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Result == nil || resp.Result.Title == "" {
		return nil, nil, faults.New(faults.ValidationFailure, "research.deep", fmt.Errorf("response missing required fields"))
	}
	return resp.Result, resp.Usage, nil
}

func (c *Client) post(ctx context.Context, path, op string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return faults.FromStatusCode(op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.New(faults.ValidationFailure, op, err)
	}
	return nil
}

// Timeout reports the transport deadline, exposed for callers composing their
// own context deadlines.
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}
