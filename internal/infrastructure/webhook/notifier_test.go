package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FeedAggregator/internal/domain"
)

func TestNotifyRunPostsJSON(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	result := domain.RunResult{
		Created:         2,
		EntitiesTouched: []string{"acme-v2", "cursor"},
		Sources:         []domain.SyncResult{{SourceID: "feed-1", URL: "https://acme.example/rss", Created: 2}},
	}
	if err := NewNotifier(srv.URL, 0).NotifyRun(context.Background(), result); err != nil {
		t.Fatalf("NotifyRun returned error: %v", err)
	}

	if got["event"] != runEvent {
		t.Fatalf("unexpected event %v", got["event"])
	}
	touched, ok := got["entitiesTouched"].([]any)
	if !ok || len(touched) != 2 || touched[0] != "acme-v2" {
		t.Fatalf("unexpected entitiesTouched %v", got["entitiesTouched"])
	}
	sources, ok := got["sources"].([]any)
	if !ok || len(sources) != 1 {
		t.Fatalf("unexpected sources %v", got["sources"])
	}
}

func TestNotifyRunStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, 0).NotifyRun(context.Background(), domain.RunResult{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNotifyRunMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", 0).NotifyRun(context.Background(), domain.RunResult{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
