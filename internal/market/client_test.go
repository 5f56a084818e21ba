package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"polypaper/internal/config"
	apperrors "polypaper/internal/errors"
)

func newTestClient(base string, fallbacks ...string) *Client {
	return NewClient(config.MarketConfig{
		BaseURL:        base,
		FallbackURLs:   fallbacks,
		Timeout:        2 * time.Second,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		UserAgent:      "polypaper-test",
	}, zerolog.Nop())
}

const eventJSON = `{
	"id": "e1",
	"title": "Election",
	"slug": "election",
	"active": true,
	"closed": false,
	"volume": "1500000",
	"liquidity": 42000.5,
	"markets": [
		{"id": "m1", "question": "Will A win?", "slug": "a", "outcomes": "[\"Yes\", \"No\"]", "outcomePrices": "[\"0.40\", \"0.60\"]", "active": true}
	]
}`

func TestClientActiveEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("closed") != "false" || q.Get("active") != "true" || q.Get("limit") != "10" || q.Get("offset") != "20" {
			http.Error(w, "bad query: "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		if r.Header.Get("Accept") != "application/json" || r.Header.Get("User-Agent") != "polypaper-test" {
			http.Error(w, "bad headers", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "[%s]", eventJSON)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).ActiveEvents(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("ActiveEvents: %v", err)
	}
	if len(events) != 1 || events[0].Slug != "election" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(events[0].Markets) != 1 {
		t.Fatalf("expected one market, got %d", len(events[0].Markets))
	}
}

func TestClientEventBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/slug/election":
			fmt.Fprint(w, eventJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	event, err := client.EventBySlug(context.Background(), "election")
	if err != nil {
		t.Fatalf("EventBySlug: %v", err)
	}
	if event.Title != "Election" {
		t.Errorf("title = %q", event.Title)
	}

	_, err = client.EventBySlug(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	_, err = client.EventBySlug(context.Background(), "  ")
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientTransportFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := newTestClient(base).ActiveEvents(context.Background(), 5, 0)
	if !errors.Is(err, apperrors.ErrProvider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Errorf("transport failure should be retryable")
	}

	_, err = newTestClient(base).EventBySlug(context.Background(), "election")
	if !errors.Is(err, apperrors.ErrProvider) {
		t.Fatalf("expected ProviderError for slug lookup, got %v", err)
	}
}

func TestClientFallsBackToNextEndpoint(t *testing.T) {
	var primaryHits int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryHits, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"events": [%s]}`, eventJSON)
	}))
	defer secondary.Close()

	events, err := newTestClient(primary.URL, secondary.URL).Search(context.Background(), "election")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if hits := atomic.LoadInt32(&primaryHits); hits != 2 {
		t.Errorf("primary hits = %d, want 2 (one retry)", hits)
	}
}

func TestClientSkipsOpenCircuit(t *testing.T) {
	var primaryHits int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryHits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer secondary.Close()

	client := newTestClient(primary.URL, secondary.URL)
	for i := 0; i < 5; i++ {
		if _, err := client.ActiveEvents(context.Background(), 1, 0); err != nil {
			t.Fatalf("ActiveEvents #%d: %v", i, err)
		}
	}

	// Three failed calls of two attempts each open the primary's circuit.
	if hits := atomic.LoadInt32(&primaryHits); hits != 6 {
		t.Errorf("primary hits = %d, want 6", hits)
	}
}

func TestClientSearchRequiresQuery(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Search(context.Background(), "")
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
