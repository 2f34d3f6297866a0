// Package discord is the presentation layer: it renders workflow result
// objects into messages and translates chat commands into service calls.
// Nothing in here decides outcomes.
package discord

import (
	"context"
	"fmt"

	"riftbot/internal/config"
	"riftbot/internal/repository"
	"riftbot/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// NewSession builds the shared discord session. The gateway registers
// command handlers on it; the notifier only sends.
func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return session, nil
}

type Gateway struct {
	session     *discordgo.Session
	betting     *service.BettingService
	ingest      *service.IngestService
	leaderboard *repository.LeaderboardRepository
	logger      zerolog.Logger
}

func NewGateway(
	session *discordgo.Session,
	betting *service.BettingService,
	ingest *service.IngestService,
	leaderboard *repository.LeaderboardRepository,
	logger zerolog.Logger,
) *Gateway {
	g := &Gateway{
		session:     session,
		betting:     betting,
		ingest:      ingest,
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "discord").Logger(),
	}
	session.AddHandler(g.onMessageCreate)
	return g
}

func (g *Gateway) Start(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}
	g.logger.Info().Msg("discord gateway connected")
	return nil
}

func (g *Gateway) Stop(ctx context.Context) error {
	g.logger.Info().Msg("closing discord gateway")
	return g.session.Close()
}
