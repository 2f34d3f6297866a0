// Package scheduler runs the periodic loops: ingestion sweeps, window
// expiry, stale claim cleanup, and rank sync.
package scheduler

import (
	"context"
	"time"

	"riftbot/internal/config"
	"riftbot/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Scheduler struct {
	ingest     *service.IngestService
	settlement *service.SettlementService
	rankSync   *service.RankSyncService
	notifier   service.Notifier
	cfg        *config.Config
	logger     zerolog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(
	ingest *service.IngestService,
	settlement *service.SettlementService,
	rankSync *service.RankSyncService,
	notifier service.Notifier,
	cfg *config.Config,
	logger zerolog.Logger,
) *Scheduler {
	ingest.SetSweepMatchCount(cfg.SweepMatchCount)
	return &Scheduler{
		ingest:     ingest,
		settlement: settlement,
		rankSync:   rankSync,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)

	s.loop(ctx, "sweep", s.cfg.SweepInterval, s.runSweep)
	s.loop(ctx, "expiry", s.cfg.ExpirySweepInterval, s.runExpiry)
	s.loop(ctx, "rank_sync", s.cfg.RankSyncInterval, s.runRankSync)

	s.logger.Info().
		Dur("sweep_interval", s.cfg.SweepInterval).
		Dur("expiry_interval", s.cfg.ExpirySweepInterval).
		Dur("rank_sync_interval", s.cfg.RankSyncInterval).
		Msg("scheduler started")
}

func (s *Scheduler) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	return s.group.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	s.group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug().Str("loop", name).Msg("loop stopped")
				return nil
			case <-ticker.C:
				run(ctx)
			}
		}
	})
}

func (s *Scheduler) runSweep(ctx context.Context) {
	result := s.ingest.SweepAll(ctx)
	s.logger.Info().
		Int("checked", result.Checked).
		Int("new", len(result.NewMatches)).
		Int("already_processed", result.SkippedAlreadyProcessed).
		Int("errors", len(result.Errors)).
		Msg("sweep completed")
}

// runExpiry bundles the short-period housekeeping: overdue window
// cancellation, stale claim recovery, expired grant revocation.
func (s *Scheduler) runExpiry(ctx context.Context) {
	if err := s.settlement.ExpireWindows(ctx, s.notifier); err != nil {
		s.logger.Error().Err(err).Msg("window expiry failed")
	}
	if _, err := s.ingest.CleanupStaleClaims(ctx); err != nil {
		s.logger.Error().Err(err).Msg("stale claim cleanup failed")
	}
	if _, err := s.rankSync.SweepExpiredGrants(ctx); err != nil {
		s.logger.Error().Err(err).Msg("grant sweep failed")
	}
}

func (s *Scheduler) runRankSync(ctx context.Context) {
	result := s.rankSync.SyncRanks(ctx)
	if len(result.Errors) > 0 {
		s.logger.Warn().Int("errors", len(result.Errors)).Msg("rank sync finished with errors")
	}
}
