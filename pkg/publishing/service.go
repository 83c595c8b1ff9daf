package publishing

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

// ListingGetter loads a finalized record with its media.
type ListingGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*listing.Listing, error)
}

type Service struct {
	listings ListingGetter
	channels map[string]Channel
	siteBase string
}

func NewService(listings ListingGetter, channels []Channel, siteBase string) *Service {
	byName := make(map[string]Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}
	return &Service{listings: listings, channels: byName, siteBase: siteBase}
}

// Process delivers one finalized record to its target channels. Per-channel
// outcomes land in the task result; the task fails when every channel fails
// or when no requested channel is configured at all.
func (s *Service) Process(ctx context.Context, task *taskqueue.Task) (*taskqueue.Outcome, error) {
	recordID, err := uuid.Parse(stringField(task.Payload, "record_id"))
	if err != nil {
		return nil, fmt.Errorf("publishing task has invalid record_id: %w", err)
	}

	record, err := s.listings.Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}

	payload := RenderPayload(record, s.siteBase)

	targets := channelList(task.Payload)
	if len(targets) == 0 {
		for name := range s.channels {
			targets = append(targets, name)
		}
	}

	outcomes := make(map[string]interface{}, len(targets))
	var delivered int
	var firstErr error
	for _, name := range targets {
		channel, ok := s.channels[name]
		if !ok {
			outcomes[name] = "unknown channel"
			continue
		}
		if err := channel.Deliver(ctx, payload); err != nil {
			metrics.PublishFailed()
			outcomes[name] = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"record_id": recordID.String(),
				"channel":   name,
			}).Warn("Channel delivery failed")
			continue
		}
		metrics.PublishSent()
		outcomes[name] = "delivered"
		delivered++
	}

	if delivered == 0 {
		if firstErr != nil {
			return nil, fmt.Errorf("all channels failed: %w", firstErr)
		}
		return nil, fmt.Errorf("no configured channel matched %v", targets)
	}

	return &taskqueue.Outcome{Result: map[string]interface{}{
		"record_id": recordID.String(),
		"delivered": delivered,
		"channels":  outcomes,
	}}, nil
}

// RenderPayload builds the channel-independent notification for a listing.
func RenderPayload(record *listing.Listing, siteBase string) *NotificationPayload {
	fields := []Field{
		{Name: "Location", Value: strings.TrimSpace(record.City + " " + record.State)},
		{Name: "Category", Value: record.Category},
	}
	if record.MaxGuests > 0 {
		fields = append(fields, Field{Name: "Capacity", Value: fmt.Sprintf("%d-%d guests", record.MinGuests, record.MaxGuests)})
	}
	if record.PriceMaxCents > 0 {
		fields = append(fields, Field{
			Name:  "Price",
			Value: fmt.Sprintf("%s %d-%d", record.PriceCurrency, record.PriceMinCents/100, record.PriceMaxCents/100),
		})
	}

	payload := &NotificationPayload{
		Title:       record.Title,
		Description: summarize(record.Description, 300),
		URL:         fmt.Sprintf("%s/listings/%s", siteBase, record.Slug),
		Fields:      fields,
	}
	if len(record.Media) > 0 {
		payload.ImageURL = record.Media[0].URL
	}
	return payload
}

func summarize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune start so the cut never splits a multi-byte sequence.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}

func channelList(payload map[string]interface{}) []string {
	switch v := payload["channels"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
