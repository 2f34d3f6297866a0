package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"riftbot/internal/config"
	"riftbot/internal/database"
	"riftbot/internal/domain"
	"riftbot/internal/metrics"
	"riftbot/internal/repository"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*Server, *repository.LeaderboardRepository) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := database.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	leaderboard := repository.NewLeaderboardRepository(db, zerolog.Nop())
	srv := New(&config.Config{ServerPort: "0"}, metrics.New(), leaderboard, zerolog.Nop())
	return srv, leaderboard
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv, leaderboard := newTestServer(t)
	week := repository.WeekKey(time.Now())
	if err := leaderboard.AddGame(context.Background(), "d1", week, domain.Participant{Kills: 5, Win: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Week    string                    `json:"week"`
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Week != week {
		t.Fatalf("week = %s, want %s", body.Week, week)
	}
	if len(body.Entries) != 1 || body.Entries[0].DiscordID != "d1" {
		t.Fatalf("entries = %+v", body.Entries)
	}
}
