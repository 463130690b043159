package n8n

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
)

func testConfig(baseURL string) config.EngineConfig {
	return config.EngineConfig{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		RetryMax:    0,
		ServiceName: "n8n",
	}
}

func TestListExecutionsMapsStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok_123" {
			t.Errorf("Authorization = %q, want Bearer tok_123", got)
		}
		fmt.Fprint(w, `{"data": [
			{"id": 1, "status": "success", "startedAt": "2026-08-14T09:15:00.000Z"},
			{"id": 2, "status": "error",   "startedAt": "2026-08-14T10:00:00.000Z"},
			{"id": 3, "status": "crashed", "startedAt": "2026-08-14T11:30:00.000Z"},
			{"id": 4, "status": "running", "startedAt": "2026-08-14T12:00:00.000Z"},
			{"id": 5, "status": "waiting", "startedAt": "2026-08-14T12:05:00.000Z"},
			{"id": 6, "status": "canceled","startedAt": "2026-08-14T12:10:00.000Z"},
			{"id": 7, "status": "unknown", "startedAt": "2026-08-15T00:30:00.000Z"}
		], "nextCursor": ""}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok_123")

	records, err := client.ListExecutions(context.Background(), "wf-ext-1",
		day("2026-08-10"), day("2026-08-16"))
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}

	// running, waiting and canceled are not countable
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}

	succeeded := 0
	for _, rec := range records {
		if rec.Succeeded {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}

	if !records[0].Date.Equal(day("2026-08-14")) {
		t.Errorf("record date = %v, want 2026-08-14", records[0].Date)
	}
	if !records[3].Date.Equal(day("2026-08-15")) {
		t.Errorf("late record date = %v, want 2026-08-15", records[3].Date)
	}
}

func TestListExecutionsFollowsCursor(t *testing.T) {
	var pages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"data": [{"id": 1, "status": "success", "startedAt": "2026-08-14T01:00:00Z"}], "nextCursor": "page2"}`)
		case "page2":
			fmt.Fprint(w, `{"data": [{"id": 2, "status": "success", "startedAt": "2026-08-14T02:00:00Z"}], "nextCursor": ""}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok")

	records, err := client.ListExecutions(context.Background(), "wf-ext-1",
		day("2026-08-10"), day("2026-08-16"))
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
		kind   ErrorKind
	}{
		{"401 is auth failure", http.StatusUnauthorized, IsAuthFailed, KindAuthFailed},
		{"403 is auth failure", http.StatusForbidden, IsAuthFailed, KindAuthFailed},
		{"404 is not found", http.StatusNotFound, IsNotFound, KindNotFound},
		{"429 is rate limited", http.StatusTooManyRequests, IsRateLimited, KindRateLimited},
		{"500 is unreachable", http.StatusInternalServerError, IsUnreachable, KindUnreachable},
		{"502 is unreachable", http.StatusBadGateway, IsUnreachable, KindUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL), "tok")
			_, err := client.GetWorkflow(context.Background(), "wf-ext-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v not classified as %s", err, tt.kind)
			}
		})
	}
}

func TestConnectionFailureIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := NewClient(testConfig(server.URL), "tok")
	_, err := client.GetWorkflow(context.Background(), "wf-ext-1")
	if !IsUnreachable(err) {
		t.Errorf("error %v, want unreachable", err)
	}
}

func TestTransientRetriesButRateLimitDoesNot(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"id": "wf-ext-1", "active": true, "updatedAt": "2026-08-14T10:00:00Z"}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryMax = 2
	client := NewClient(cfg, "tok")

	meta, err := client.GetWorkflow(context.Background(), "wf-ext-1")
	if err != nil {
		t.Fatalf("GetWorkflow after retries: %v", err)
	}
	if meta.Status != "active" {
		t.Errorf("status = %s, want active", meta.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	calls = 0
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()

	cfg = testConfig(limited.URL)
	cfg.RetryMax = 2
	client = NewClient(cfg, "tok")

	_, err = client.GetWorkflow(context.Background(), "wf-ext-1")
	if !IsRateLimited(err) {
		t.Fatalf("error %v, want rate limited", err)
	}
	if calls != 1 {
		t.Errorf("429 was retried %d times, transport must not retry it", calls-1)
	}
}

func TestSetActiveHitsActionEndpoints(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(map[string]bool{"active": true})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok")

	if err := client.SetActive(context.Background(), "wf-ext-9", true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/v1/workflows/wf-ext-9/activate" {
		t.Errorf("got %s %s, want POST /api/v1/workflows/wf-ext-9/activate", gotMethod, gotPath)
	}

	if err := client.SetActive(context.Background(), "wf-ext-9", false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}
	if gotPath != "/api/v1/workflows/wf-ext-9/deactivate" {
		t.Errorf("got path %s, want /api/v1/workflows/wf-ext-9/deactivate", gotPath)
	}
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}
