package gbif

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newMatchServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestResolveConfidentMatch(t *testing.T) {
	server := newMatchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"confidence": 97, "status": "ACCEPTED", "canonicalName": "Mastomys natalensis"}`)
	})
	client := NewClient(WithBaseURL(server.URL))

	got := client.Resolve(context.Background(), "Mastomys natalensis (Smith, 1834)")
	if got != "Mastomys natalensis" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveLowConfidenceKeepsVerbatim(t *testing.T) {
	server := newMatchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"confidence": 40, "status": "ACCEPTED", "canonicalName": "Something else"}`)
	})
	client := NewClient(WithBaseURL(server.URL))

	got := client.Resolve(context.Background(), "Mastomys sp.")
	if got != "Mastomys sp." {
		t.Fatalf("got %q", got)
	}
}

func TestResolveSynonymFollowsAccepted(t *testing.T) {
	server := newMatchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/species/match" {
			fmt.Fprint(w, `{"confidence": 99, "status": "SYNONYM", "canonicalName": "Old name", "acceptedUsageKey": 555}`)
			return
		}
		if r.URL.Path == "/species/555" {
			fmt.Fprint(w, `{"canonicalName": "Accepted name"}`)
			return
		}
		http.NotFound(w, r)
	})
	client := NewClient(WithBaseURL(server.URL))

	got := client.Resolve(context.Background(), "Old name")
	if got != "Accepted name" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveServerErrorKeepsVerbatim(t *testing.T) {
	server := newMatchServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client := NewClient(WithBaseURL(server.URL))

	got := client.Resolve(context.Background(), "Rattus rattus")
	if got != "Rattus rattus" {
		t.Fatalf("got %q", got)
	}
}

func TestResolvePlaceholders(t *testing.T) {
	client := NewClient() // no request is made for placeholders
	for _, raw := range []string{"", "  ", "NA", "n/a", "Unknown", "none"} {
		if got := client.Resolve(context.Background(), raw); got != "" {
			t.Errorf("Resolve(%q) = %q, want empty", raw, got)
		}
	}
}

func TestResolveCachesLookups(t *testing.T) {
	calls := 0
	server := newMatchServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"confidence": 99, "status": "ACCEPTED", "canonicalName": "Mus musculus"}`)
	})
	client := NewClient(WithBaseURL(server.URL))

	client.Resolve(context.Background(), "Mus musculus")
	client.Resolve(context.Background(), "Mus musculus")
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}

func TestNoopResolver(t *testing.T) {
	r := NoopResolver{}
	if got := r.Resolve(context.Background(), " Mastomys natalensis "); got != "Mastomys natalensis" {
		t.Fatalf("got %q", got)
	}
	if got := r.Resolve(context.Background(), "n/a"); got != "" {
		t.Fatalf("placeholder should be empty, got %q", got)
	}
}
