package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
)

// Uploader is the slice of the object store the gate needs.
type Uploader interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// StoredImage is an accepted image, uploaded and addressable.
type StoredImage struct {
	SourceURL string `json:"source_url"`
	StoredURL string `json:"stored_url"`
	Path      string `json:"path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Gate downloads candidate images, applies the quality policy and stores the
// survivors. Rejection is an expected outcome, never an error: a bad image
// must not fail the enrichment batch it belongs to.
type Gate struct {
	policy     Policy
	uploader   Uploader
	client     *http.Client
	fetchDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration)
}

func NewGate(policy Policy, uploader Uploader, fetchDelay time.Duration) *Gate {
	return &Gate{
		policy:     policy,
		uploader:   uploader,
		client:     httpclient.New(30 * time.Second),
		fetchDelay: fetchDelay,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// Evaluate fetches one candidate and either stores it under destPrefix or
// reports why it was rejected.
func (g *Gate) Evaluate(ctx context.Context, url, destPrefix string, seq int) (*StoredImage, bool) {
	data, contentType, ok := g.fetch(ctx, url)
	if !ok {
		return nil, false
	}

	ext, supported := allowedTypes[contentType]
	if !supported {
		g.reject(url, "unsupported content type "+contentType)
		return nil, false
	}

	if len(data) > g.policy.MaxBytes {
		g.reject(url, fmt.Sprintf("size %d exceeds cap %d", len(data), g.policy.MaxBytes))
		return nil, false
	}

	width, height, err := Dimensions(data)
	if err != nil {
		g.reject(url, "dimension parse: "+err.Error())
		return nil, false
	}

	if ok, reason := g.policy.Check(width, height, len(data)); !ok {
		g.reject(url, reason)
		return nil, false
	}

	path := destPath(destPrefix, seq, ext)
	storedURL, err := g.uploader.Upload(ctx, path, contentType, data)
	if err != nil {
		g.reject(url, "upload: "+err.Error())
		return nil, false
	}

	metrics.ImageAccepted()
	return &StoredImage{
		SourceURL: url,
		StoredURL: storedURL,
		Path:      path,
		Width:     width,
		Height:    height,
		SizeBytes: len(data),
	}, true
}

// EvaluateBatch runs the gate over an ordered candidate list up to maxImages,
// pausing between downloads, and returns accepted images in their original
// relative order.
func (g *Gate) EvaluateBatch(ctx context.Context, urls []string, destPrefix string, maxImages int) []StoredImage {
	var accepted []StoredImage
	for i, url := range urls {
		if i >= maxImages {
			break
		}
		if i > 0 && g.fetchDelay > 0 {
			g.sleep(ctx, g.fetchDelay)
		}
		if ctx.Err() != nil {
			break
		}
		if img, ok := g.Evaluate(ctx, url, destPrefix, len(accepted)+1); ok {
			accepted = append(accepted, *img)
		}
	}
	return accepted
}

func (g *Gate) fetch(ctx context.Context, url string) ([]byte, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		g.reject(url, "build request: "+err.Error())
		return nil, "", false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.reject(url, "download: "+err.Error())
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.reject(url, fmt.Sprintf("download status %d", resp.StatusCode))
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(g.policy.MaxBytes)+1))
	if err != nil {
		g.reject(url, "read body: "+err.Error())
		return nil, "", false
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return data, contentType, true
}

func (g *Gate) reject(url, reason string) {
	metrics.ImageRejected()
	logger.Log.WithFields(map[string]interface{}{
		"url":    url,
		"reason": reason,
	}).Debug("Image rejected")
}

// destPath prefers a stable slug-plus-sequence name so re-runs overwrite
// rather than accumulate; with no prefix it falls back to a unique name.
func destPath(prefix string, seq int, ext string) string {
	if prefix != "" {
		return fmt.Sprintf("%s/%s-%03d%s", prefix, prefix, seq, ext)
	}
	return fmt.Sprintf("unsorted/%d-%s%s", time.Now().UTC().Unix(), uuid.New().String()[:8], ext)
}
