package fx

import (
	"riftbot/internal/config"
	"riftbot/internal/database"
	"riftbot/internal/discord"
	"riftbot/internal/logger"
	"riftbot/internal/metrics"
	"riftbot/internal/narrator"
	"riftbot/internal/repository"
	"riftbot/internal/riot"
	"riftbot/internal/scheduler"
	"riftbot/internal/server"
	"riftbot/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideRiotClient(cfg *config.Config, logger zerolog.Logger) *riot.Client {
	return riot.NewClient(cfg, logger)
}

// Interface bindings. The services depend on narrow interfaces so tests can
// substitute fakes; fx wires the production implementations here.

func BindMatchSource(c *riot.Client) service.MatchSource { return c }

func BindIdentitySource(c *riot.Client) service.IdentitySource { return c }

func BindNarrator(n *narrator.Service) service.Narrator { return n }

func BindNotifier(n *discord.Notifier) service.Notifier { return n }

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(metrics.New),
	// repos
	fx.Provide(repository.NewAccountRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewBetRepository),
	fx.Provide(repository.NewLeaderboardRepository),
	fx.Provide(repository.NewGrantRepository),
	// api client
	fx.Provide(ProvideRiotClient),
	fx.Provide(BindMatchSource),
	fx.Provide(BindIdentitySource),
	// svc
	fx.Provide(narrator.New),
	fx.Provide(BindNarrator),
	fx.Provide(service.NewSettlementService),
	fx.Provide(service.NewBettingService),
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewRankSyncService),
	// presentation
	fx.Provide(discord.NewSession),
	fx.Provide(discord.NewGateway),
	fx.Provide(discord.NewNotifier),
	fx.Provide(BindNotifier),
	fx.Provide(server.New),
	fx.Provide(scheduler.New),
)
