package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

// ObjectStore is a thin client for the bucket HTTP API. Paths are relative to
// the configured bucket; PublicURL rewriting to the CDN happens at the edge,
// not here.
type ObjectStore struct {
	baseURL   string
	publicURL string
	bucket    string
	apiKey    string
	client    *http.Client
}

func NewObjectStore(baseURL, publicURL, bucket, apiKey string, timeout time.Duration) *ObjectStore {
	return &ObjectStore{
		baseURL:   baseURL,
		publicURL: publicURL,
		bucket:    bucket,
		apiKey:    apiKey,
		client:    httpclient.New(timeout),
	}
}

// Upload writes data under path and returns the externally servable URL.
func (s *ObjectStore) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", faults.FromTransport("storage.upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", faults.FromStatusCode("storage.upload", resp.StatusCode)
	}

	io.Copy(io.Discard, resp.Body)

	logger.Log.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"path":   path,
		"bytes":  len(data),
	}).Debug("Object uploaded")

	return s.PublicURL(path), nil
}

// PublicURL builds the canonical retrieval URL for a stored path.
func (s *ObjectStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, path)
}

// List returns object paths under prefix.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	url := fmt.Sprintf("%s/list/%s?prefix=%s", s.baseURL, s.bucket, prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, faults.FromTransport("storage.list", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.FromStatusCode("storage.list", resp.StatusCode)
	}

	var body struct {
		Objects []struct {
			Name string `json:"name"`
		} `json:"objects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, faults.New(faults.ValidationFailure, "storage.list", err)
	}

	paths := make([]string, 0, len(body.Objects))
	for _, o := range body.Objects {
		paths = append(paths, o.Name)
	}
	return paths, nil
}

// Delete removes the object at path. Missing objects are not an error.
func (s *ObjectStore) Delete(ctx context.Context, path string) error {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return faults.FromTransport("storage.delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return faults.FromStatusCode("storage.delete", resp.StatusCode)
	}
	return nil
}
