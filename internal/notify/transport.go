package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"parking-service/internal/model"
)

// Message is what a subscriber receives.
type Message struct {
	Event      model.NotificationEvent `json:"event"`
	TicketCode string                  `json:"ticket_code,omitempty"`
	Payload    json.RawMessage         `json:"payload"`
	SentAt     time.Time               `json:"sent_at"`
}

// Transport delivers one message to one subscription. A non-nil error is
// returned only with DeliveryFailed and describes the failure.
type Transport interface {
	Send(ctx context.Context, sub model.NotificationSubscription, msg Message) (model.DeliveryOutcome, error)
}

// HTTPTransport POSTs the message as JSON to the subscription endpoint.
// 2xx is delivered, 404 and 410 mean the endpoint is gone, anything else is
// a transient failure.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Send(ctx context.Context, sub model.NotificationSubscription, msg Message) (model.DeliveryOutcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return model.DeliveryFailed, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.DeliveryFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth, ok := sub.Keys["auth"].(string); ok && auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return model.DeliveryFailed, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return model.DeliveryDelivered, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return model.DeliveryExpired, nil
	}
	return model.DeliveryFailed, fmt.Errorf("endpoint responded %d", resp.StatusCode)
}
