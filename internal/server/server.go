// Package server exposes the operational HTTP surface: health, Prometheus
// metrics, and a read-only leaderboard endpoint for dashboards.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"riftbot/internal/config"
	"riftbot/internal/metrics"
	"riftbot/internal/middleware"
	"riftbot/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type Server struct {
	httpServer  *http.Server
	leaderboard *repository.LeaderboardRepository
	logger      zerolog.Logger
}

func New(
	cfg *config.Config,
	pipelineMetrics *metrics.PipelineMetrics,
	leaderboard *repository.LeaderboardRepository,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(pipelineMetrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/leaderboard", s.handleLeaderboard)

	handler := middleware.RequestID(logger)(mux)
	handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(handler)

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	week := r.URL.Query().Get("week")
	if week == "" {
		week = repository.WeekKey(time.Now())
	}

	entries, err := s.leaderboard.TopForWeek(r.Context(), week, 10)
	if err != nil {
		s.logger.Error().Err(err).Str("week", week).Msg("leaderboard query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"week":    week,
		"entries": entries,
	})
}
