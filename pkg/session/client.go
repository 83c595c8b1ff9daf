package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/config"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
)

// Post is one piece of recent content from an external account.
type Post struct {
	ID       string    `json:"id"`
	Caption  string    `json:"caption"`
	MediaURL string    `json:"media_url"`
	TakenAt  time.Time `json:"taken_at"`
}

// SocialClient wraps the provider bridge. The bridge holds a single mutable
// device session, so callers must serialize access through the Manager.
type SocialClient interface {
	Restore(ctx context.Context, blob []byte) error
	Login(ctx context.Context, username, password string) ([]byte, error)
	RequestChallengeCode(ctx context.Context, method string) error
	AutoResolveChallenge(ctx context.Context) ([]byte, error)
	SubmitChallengeCode(ctx context.Context, code string) ([]byte, error)
	FetchRecentPosts(ctx context.Context, account string, limit int) ([]Post, error)
	Follow(ctx context.Context, account string) error
}

type bridgeResponse struct {
	Success           bool   `json:"success"`
	Session           []byte `json:"session,omitempty"`
	ChallengeRequired bool   `json:"challenge_required,omitempty"`
	ChallengeMethod   string `json:"challenge_method,omitempty"`
	Posts             []Post `json:"posts,omitempty"`
	Error             string `json:"error,omitempty"`
}

// HTTPClient talks to the session bridge sidecar.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.SocialBaseURL,
		client:  httpclient.New(cfg.SocialTimeout),
	}
}

func NewHTTPClientWith(baseURL string, client *http.Client) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, client: client}
}

func (c *HTTPClient) Restore(ctx context.Context, blob []byte) error {
	_, err := c.post(ctx, "session.restore", "/v1/session/restore", map[string]interface{}{"session": blob})
	return err
}

// Login authenticates with credentials and returns the serialized session.
// A challenge interruption comes back as *ChallengeRequiredError; a credential
// rejection as ErrAuthFailed.
func (c *HTTPClient) Login(ctx context.Context, username, password string) ([]byte, error) {
	resp, err := c.post(ctx, "session.login", "/v1/session/login", map[string]interface{}{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *HTTPClient) RequestChallengeCode(ctx context.Context, method string) error {
	_, err := c.post(ctx, "session.challenge.dispatch", "/v1/challenge/dispatch", map[string]interface{}{"method": method})
	return err
}

func (c *HTTPClient) AutoResolveChallenge(ctx context.Context) ([]byte, error) {
	resp, err := c.post(ctx, "session.challenge.auto", "/v1/challenge/auto", nil)
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *HTTPClient) SubmitChallengeCode(ctx context.Context, code string) ([]byte, error) {
	resp, err := c.post(ctx, "session.challenge.submit", "/v1/challenge/submit", map[string]interface{}{"code": code})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *HTTPClient) FetchRecentPosts(ctx context.Context, account string, limit int) ([]Post, error) {
	path := "/v1/accounts/" + url.PathEscape(account) + "/posts?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build posts request: %w", err)
	}
	resp, err := c.do("session.posts", req)
	if err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

func (c *HTTPClient) Follow(ctx context.Context, account string) error {
	_, err := c.post(ctx, "session.follow", "/v1/accounts/"+url.PathEscape(account)+"/follow", nil)
	return err
}

func (c *HTTPClient) post(ctx context.Context, op, path string, body map[string]interface{}) (*bridgeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req)
}

// do executes a bridge call and classifies its outcome once, here at the
// transport boundary. A 409 carries a challenge interruption; 401 is a
// credential rejection.
func (c *HTTPClient) do(op string, req *http.Request) (*bridgeResponse, error) {
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, faults.FromTransport(op, err)
	}
	defer httpResp.Body.Close()

	var resp bridgeResponse
	if decodeErr := json.NewDecoder(httpResp.Body).Decode(&resp); decodeErr != nil && httpResp.StatusCode == http.StatusOK {
		return nil, faults.New(faults.ValidationFailure, op, decodeErr)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK && resp.Success:
		return &resp, nil
	case httpResp.StatusCode == http.StatusConflict && resp.ChallengeRequired:
		method := resp.ChallengeMethod
		if method == "" {
			method = "email"
		}
		return nil, &ChallengeRequiredError{Method: method}
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuthFailed
	case httpResp.StatusCode == http.StatusOK:
		return nil, faults.New(faults.ValidationFailure, op, fmt.Errorf("bridge reported failure: %s", resp.Error))
	default:
		return nil, faults.FromStatusCode(op, httpResp.StatusCode)
	}
}
