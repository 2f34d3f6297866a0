package riot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"riftbot/internal/config"

	"github.com/rs/zerolog"
)

func testConfig() *config.Config {
	return &config.Config{
		RiotAPIKey:       "test-key",
		RiotRegion:       "americas",
		ShortLimitCount:  1000,
		ShortLimitWindow: time.Second,
		LongLimitCount:   10000,
		LongLimitWindow:  time.Minute,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(testConfig(), zerolog.Nop(), WithBaseURL(server.URL))
	return client, server
}

func TestGetAccountByRiotID(t *testing.T) {
	var gotPath, gotToken string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Riot-Token")
		json.NewEncoder(w).Encode(AccountResponse{Puuid: "p1", GameName: "Faker", TagLine: "KR1"})
	}))

	account, err := client.GetAccountByRiotID(context.Background(), "Faker", "KR1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account == nil || account.Puuid != "p1" {
		t.Fatalf("account = %+v", account)
	}
	if gotPath != "/riot/account/v1/accounts/by-riot-id/Faker/KR1" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotToken != "test-key" {
		t.Fatalf("token header = %q", gotToken)
	}
}

func TestGetMatchDetailNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	match, err := client.GetMatchDetail(context.Background(), "NA1_missing")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if match != nil {
		t.Fatalf("match = %+v, want nil", match)
	}
}

func TestListRecentMatchIDsQuery(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]string{"NA1_1", "NA1_2"})
	}))

	ids, err := client.ListRecentMatchIDs(context.Background(), "p1", 5, "ranked")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if gotQuery != "start=0&count=5&type=ranked" {
		t.Fatalf("query = %s", gotQuery)
	}
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]string{"NA1_1"})
	}))

	start := time.Now()
	ids, err := client.ListRecentMatchIDs(context.Background(), "p1", 5, "")
	if err != nil {
		t.Fatalf("list after 429: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v", ids)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("request returned after %v, must wait out Retry-After", elapsed)
	}
}

func TestServerErrorRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(MatchResponse{Metadata: MatchMetadata{MatchID: "NA1_1"}})
	}))

	match, err := client.GetMatchDetail(context.Background(), "NA1_1")
	if err != nil {
		t.Fatalf("get after 503: %v", err)
	}
	if match == nil || match.Metadata.MatchID != "NA1_1" {
		t.Fatalf("match = %+v", match)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestUnauthorizedTripsBreaker(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.GetMatchDetail(context.Background(), "NA1_1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, a credential failure must not retry", calls.Load())
	}

	// every later call short-circuits without touching the network
	_, err = client.GetLeagueEntries(context.Background(), "p1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("breaker not engaged: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d after breaker, want still 1", calls.Load())
	}
}
