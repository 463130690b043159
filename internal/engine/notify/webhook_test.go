package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
)

type recordedDelivery struct {
	channelID string
	lastError string
}

type stubChannels struct {
	mu         sync.Mutex
	channels   []*models.NotificationChannel
	deliveries []recordedDelivery
}

func (s *stubChannels) ListActiveForEvent(eventType string) ([]*models.NotificationChannel, error) {
	return s.channels, nil
}

func (s *stubChannels) RecordDelivery(id string, deliveredAt int64, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, recordedDelivery{channelID: id, lastError: lastError})
	return nil
}

func TestWebhookSinkSignsAndDelivers(t *testing.T) {
	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &stubChannels{channels: []*models.NotificationChannel{
		{ID: "ch_1", URL: server.URL, Secret: "channel-secret", Status: "active"},
	}}
	sink := NewWebhookSink(store, 5*time.Second)

	err := sink.Publish(context.Background(), InvoiceCreated("inv_1", "INV-2026-001", "cl_1"))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if headers.Get("X-Monoliet-Event") != TypeInvoiceCreated {
		t.Errorf("event header = %q, want %q", headers.Get("X-Monoliet-Event"), TypeInvoiceCreated)
	}
	if headers.Get("X-Monoliet-Delivery") == "" {
		t.Error("delivery header missing")
	}
	if got := headers.Get("X-Monoliet-Signature"); got != Sign("channel-secret", body) {
		t.Errorf("signature = %q does not match body", got)
	}

	var env struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Data      struct {
			InvoiceNumber string `json:"invoice_number"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != TypeInvoiceCreated {
		t.Errorf("envelope type = %q, want %q", env.Type, TypeInvoiceCreated)
	}
	if env.Data.InvoiceNumber != "INV-2026-001" {
		t.Errorf("envelope invoice_number = %q, want INV-2026-001", env.Data.InvoiceNumber)
	}

	if len(store.deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(store.deliveries))
	}
	if store.deliveries[0].lastError != "" {
		t.Errorf("delivery recorded error %q, want none", store.deliveries[0].lastError)
	}
}

func TestWebhookSinkRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := &stubChannels{channels: []*models.NotificationChannel{
		{ID: "ch_1", URL: server.URL, Secret: "s", Status: "active"},
	}}
	sink := NewWebhookSink(store, 5*time.Second)

	if err := sink.Publish(context.Background(), WorkflowRecovered("wf_1", "cl_1", 0.95)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(store.deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(store.deliveries))
	}
	if !strings.Contains(store.deliveries[0].lastError, "500") {
		t.Errorf("recorded error = %q, want it to mention the status code", store.deliveries[0].lastError)
	}
}

func TestWebhookSinkFansOutToAllChannels(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	newServer := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}
	first := newServer("first")
	defer first.Close()
	second := newServer("second")
	defer second.Close()

	store := &stubChannels{channels: []*models.NotificationChannel{
		{ID: "ch_1", URL: first.URL, Secret: "a", Status: "active"},
		{ID: "ch_2", URL: second.URL, Secret: "b", Status: "active"},
	}}
	sink := NewWebhookSink(store, 5*time.Second)

	if err := sink.Publish(context.Background(), WorkflowDegraded("wf_1", "cl_1", 0.5, 7)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["first"] != 1 || hits["second"] != 1 {
		t.Errorf("hits = %v, want one per channel", hits)
	}
}
