package publishing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpclient"
)

// Field is one name/value pair rendered into a notification.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NotificationPayload is the channel-independent rendering of a published
// listing.
type NotificationPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Fields      []Field `json:"fields"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Channel delivers a notification somewhere.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, payload *NotificationPayload) error
}

// WebhookChannel posts the payload to a configured HTTP endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{url: url, client: httpclient.New(30 * time.Second)}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Deliver(ctx context.Context, payload *NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.FromTransport("publish.webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return faults.FromStatusCode("publish.webhook", resp.StatusCode)
	}
	return nil
}

// EventPublisher is the slice of the Kafka producer the events channel needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// EventsChannel announces the listing on the event bus.
type EventsChannel struct {
	producer EventPublisher
}

func NewEventsChannel(producer EventPublisher) *EventsChannel {
	return &EventsChannel{producer: producer}
}

func (c *EventsChannel) Name() string { return "events" }

func (c *EventsChannel) Deliver(ctx context.Context, payload *NotificationPayload) error {
	fields := make(map[string]interface{}, len(payload.Fields))
	for _, f := range payload.Fields {
		fields[f.Name] = f.Value
	}
	return c.producer.PublishEvent(ctx, "listing.published", "publishing-service", map[string]interface{}{
		"title":       payload.Title,
		"description": payload.Description,
		"url":         payload.URL,
		"image_url":   payload.ImageURL,
		"fields":      fields,
	})
}
