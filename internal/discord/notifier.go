package discord

import (
	"context"
	"fmt"
	"strings"

	"riftbot/internal/config"
	"riftbot/internal/constants"
	"riftbot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Notifier renders workflow results into the configured announcement
// channel. It satisfies service.Notifier and is fire-and-forget: send
// failures are logged and dropped.
type Notifier struct {
	session   *discordgo.Session
	channelID string
	logger    zerolog.Logger
}

func NewNotifier(session *discordgo.Session, cfg *config.Config, logger zerolog.Logger) *Notifier {
	return &Notifier{
		session:   session,
		channelID: cfg.DiscordChannelID,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) NotifyAnalysis(ctx context.Context, analysis *domain.MatchAnalysis) {
	if n.channelID == "" {
		return
	}

	var b strings.Builder
	for _, p := range analysis.Participants {
		outcome := "❌"
		if p.Win {
			outcome = "✅"
		}
		fmt.Fprintf(&b, "%s <@%s> · %s · %d/%d/%d · score %.1f\n",
			outcome, p.DiscordID, p.Champion, p.Kills, p.Deaths, p.Assists, p.MvpScore)
	}
	if analysis.MVP != nil {
		fmt.Fprintf(&b, "\n🏆 MVP: <@%s>", analysis.MVP.DiscordID)
	}
	if analysis.Feeder != nil {
		fmt.Fprintf(&b, "\n💀 Feeder: <@%s>", analysis.Feeder.DiscordID)
	}
	for _, line := range analysis.TrashTalks {
		fmt.Fprintf(&b, "\n> %s", line)
	}

	title := fmt.Sprintf("Match report · %d min", int(analysis.GameDuration.Minutes()))
	if analysis.SoloGame {
		title += " · solo queue"
	}

	n.send(&discordgo.MessageEmbed{Title: title, Description: b.String(), Color: colorBlue})
}

func (n *Notifier) NotifySettlement(ctx context.Context, result *domain.SettlementResult) {
	if n.channelID == "" {
		return
	}
	if len(result.Winners) == 0 && len(result.Losers) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bets on <@%s> are settled.\n", result.TargetID)
	for _, w := range result.Winners {
		fmt.Fprintf(&b, "💰 <@%s> won **%d** on `%s` (staked %d at %.1fx)\n",
			w.Bet.BettorID, w.Payout, w.Bet.Kind, w.Bet.Amount, w.Bet.Odds)
	}
	for _, l := range result.Losers {
		fmt.Fprintf(&b, "📉 <@%s> lost **%d** on `%s`\n", l.Bet.BettorID, l.Bet.Amount, l.Bet.Kind)
	}

	n.send(successEmbed("Settlement", b.String()))
}

func (n *Notifier) NotifyCancellation(ctx context.Context, window *domain.BetWindow, refunded int) {
	if n.channelID == "" {
		return
	}

	description := fmt.Sprintf(
		"No game from <@%s> showed up in time. **%d** bets refunded, opener fined **%d** coins for the no-show.",
		window.TargetID, refunded, constants.CancelPenalty)
	n.send(errorEmbed(description))
}

func (n *Notifier) send(embed *discordgo.MessageEmbed) {
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		n.logger.Warn().Err(err).Msg("failed to send notification")
	}
}
