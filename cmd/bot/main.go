package main

import (
	"context"
	"database/sql"

	"riftbot/internal/constants"
	"riftbot/internal/discord"
	fxmodules "riftbot/internal/fx"
	"riftbot/internal/scheduler"
	"riftbot/internal/server"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	gateway *discord.Gateway,
	srv *server.Server,
	sched *scheduler.Scheduler,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := gateway.Start(ctx); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil {
					logger.Fatal().Err(err).Msg("http server failed")
				}
			}()
			sched.Start()
			logger.Info().Msg("riftbot started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := sched.Stop(); err != nil {
				logger.Warn().Err(err).Msg("scheduler stopped with error")
			}
			if err := gateway.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error closing discord gateway")
			}
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error shutting down http server")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("riftbot stopped gracefully")
			return nil
		},
	})
}
