package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ChannelStore is the slice of the channel repository the sink needs.
type ChannelStore interface {
	ListActiveForEvent(eventType string) ([]*models.NotificationChannel, error)
	RecordDelivery(id string, deliveredAt int64, lastError string) error
}

var _ ChannelStore = (*repositories.ChannelRepository)(nil)

// envelope is the wire format posted to registered channels.
type envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// WebhookSink posts events to operator-registered notification
// channels. Each body is signed with the channel secret so receivers
// can authenticate the sender.
type WebhookSink struct {
	channels ChannelStore
	client   *http.Client
}

func NewWebhookSink(channels ChannelStore, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		channels: channels,
		client:   &http.Client{Timeout: timeout},
	}
}

// Publish posts the event to every subscribed channel. Per-channel
// failures are recorded on the channel row and do not bubble up; the
// returned error covers only lookup and encoding.
func (s *WebhookSink) Publish(ctx context.Context, event Event) error {
	channels, err := s.channels.ListActiveForEvent(event.Type)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}

	deliveryID := uuid.New().String()
	body, err := json.Marshal(envelope{
		ID:        deliveryID,
		Type:      event.Type,
		Timestamp: time.Now().Unix(),
		Data:      event.Data,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p := pool.New().WithMaxGoroutines(4)
	for _, ch := range channels {
		p.Go(func() {
			s.deliver(ctx, ch, deliveryID, event.Type, body)
		})
	}
	p.Wait()
	return nil
}

func (s *WebhookSink) deliver(ctx context.Context, ch *models.NotificationChannel, deliveryID, eventType string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader(body))
	if err != nil {
		s.record(ch, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Monoliet-Event", eventType)
	req.Header.Set("X-Monoliet-Delivery", deliveryID)
	req.Header.Set("X-Monoliet-Signature", Sign(ch.Secret, body))

	resp, err := s.client.Do(req)
	if err != nil {
		s.record(ch, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.record(ch, fmt.Errorf("endpoint returned %d", resp.StatusCode))
		return
	}
	s.record(ch, nil)
}

func (s *WebhookSink) record(ch *models.NotificationChannel, deliveryErr error) {
	lastError := ""
	if deliveryErr != nil {
		lastError = deliveryErr.Error()
		log.Warn().
			Err(deliveryErr).
			Str("channel_id", ch.ID).
			Str("url", ch.URL).
			Msg("channel delivery failed")
	}
	if err := s.channels.RecordDelivery(ch.ID, time.Now().Unix(), lastError); err != nil {
		log.Warn().Err(err).Str("channel_id", ch.ID).Msg("failed to record delivery")
	}
}
