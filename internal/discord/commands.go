package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"riftbot/internal/domain"
	"riftbot/internal/repository"
	"riftbot/internal/service"

	"github.com/bwmarrin/discordgo"
)

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}
	if !strings.HasPrefix(m.Content, "!") {
		return
	}

	args := strings.Fields(m.Content)
	command := strings.ToLower(args[0])
	args = args[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "!link":
		g.cmdLink(ctx, s, m, args)
	case "!unlink":
		g.cmdUnlink(ctx, s, m)
	case "!balance":
		g.cmdBalance(ctx, s, m)
	case "!odds":
		g.cmdOdds(ctx, s, m)
	case "!openbet":
		g.cmdOpenBet(ctx, s, m)
	case "!bet":
		g.cmdBet(ctx, s, m, args)
	case "!check":
		g.cmdCheck(ctx, s, m)
	case "!leaderboard":
		g.cmdLeaderboard(ctx, s, m)
	case "!help":
		g.cmdHelp(s, m)
	}
}

func (g *Gateway) cmdHelp(s *discordgo.Session, m *discordgo.MessageCreate) {
	s.ChannelMessageSendEmbed(m.ChannelID, infoEmbed("Commands",
		"`!link Name#Tag [region]` link your riot account\n"+
			"`!unlink` unlink it\n"+
			"`!balance` show your coins\n"+
			"`!odds @user` current odds on a player\n"+
			"`!openbet` open a betting window on your next game\n"+
			"`!bet @user <win|loss|kda3|deaths7|longgame> <amount>` place a bet\n"+
			"`!check` pull your latest matches now\n"+
			"`!leaderboard` this week's standings"))
}

func (g *Gateway) cmdLink(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 1 || !strings.Contains(args[0], "#") {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Usage: `!link Name#Tag [region]`"))
		return
	}
	parts := strings.SplitN(args[0], "#", 2)
	region := "americas"
	if len(args) > 1 {
		region = strings.ToLower(args[1])
	}

	account, err := g.betting.Link(ctx, m.Author.ID, parts[0], parts[1], region)
	if err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed(linkErrorMessage(err)))
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, successEmbed("Linked!",
		fmt.Sprintf("<@%s> is now **%s**. Starting balance: **%d** coins.", m.Author.ID, account.RiotID(), account.Balance)))
}

func (g *Gateway) cmdUnlink(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if err := g.betting.Unlink(ctx, m.Author.ID); err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("You don't have a linked account."))
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, successEmbed("Unlinked", "Your riot account was unlinked. History stays on the books."))
}

func (g *Gateway) cmdBalance(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	account, err := g.betting.Balance(ctx, m.Author.ID)
	if err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("You aren't linked yet. Use `!link Name#Tag`."))
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, infoEmbed("Balance",
		fmt.Sprintf("**%s**: %d coins", account.RiotID(), account.Balance)))
}

func (g *Gateway) cmdOdds(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if len(m.Mentions) == 0 {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Usage: `!odds @user`"))
		return
	}
	target := m.Mentions[0]
	quote, err := g.betting.QuoteOdds(ctx, target.ID)
	if err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Couldn't compute odds for that player."))
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, infoEmbed(fmt.Sprintf("Odds on %s", target.Username),
		fmt.Sprintf("win **%.1fx** · loss **%.1fx** · kda3 **%.1fx** · deaths7 **%.1fx** · longgame **%.1fx**",
			quote.Win, quote.Loss, quote.KDAOver, quote.Deaths, quote.LongGame)))
}

func (g *Gateway) cmdOpenBet(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	window, err := g.betting.OpenWindow(ctx, m.Author.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWindowConflict):
			s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("You already have an active betting window."))
		case errors.Is(err, repository.ErrAccountNotFound):
			s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Link your account first with `!link Name#Tag`."))
		default:
			s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Couldn't open a betting window."))
		}
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, successEmbed("Betting window open!",
		fmt.Sprintf("Bets on <@%s>'s next game are open for 10 minutes. Place yours with `!bet`.\nWindow `%s`.", m.Author.ID, window.ID)))
}

func (g *Gateway) cmdBet(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(m.Mentions) == 0 || len(args) < 3 {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Usage: `!bet @user <win|loss|kda3|deaths7|longgame> <amount>`"))
		return
	}
	target := m.Mentions[0]
	kind := domain.BetKind(strings.ToLower(args[1]))
	amount, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Invalid amount."))
		return
	}

	bet, err := g.betting.PlaceBet(ctx, m.Author.ID, target.ID, kind, amount)
	if err != nil {
		s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed(betErrorMessage(err)))
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, successEmbed("Bet placed!",
		fmt.Sprintf("<@%s> staked **%d** on `%s` for <@%s> at **%.1fx**. Potential payout: **%d**.",
			m.Author.ID, bet.Amount, bet.Kind, target.ID, bet.Odds, potentialPayout(bet))))
}

func (g *Gateway) cmdCheck(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	result, err := g.ingest.CheckAccount(ctx, m.Author.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Link your account first with `!link Name#Tag`."))
		} else {
			s.ChannelMessageSendEmbed(m.ChannelID, errorEmbed("Match check failed, try again in a bit."))
		}
		return
	}
	s.ChannelMessageSendEmbed(m.ChannelID, infoEmbed("Match check",
		fmt.Sprintf("Checked **%d** matches: **%d** new, **%d** already processed, **%d** errors.",
			result.Checked, len(result.NewMatches), result.SkippedAlreadyProcessed, len(result.Errors))))
}

func (g *Gateway) cmdLeaderboard(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	week := repository.WeekKey(time.Now())
	entries, err := g.leaderboard.TopForWeek(ctx, week, 10)
	if err != nil || len(entries) == 0 {
		s.ChannelMessageSendEmbed(m.ChannelID, infoEmbed("Leaderboard", "No games recorded this week yet."))
		return
	}

	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "**%d.** <@%s> — %dW/%dG, %d/%d/%d\n",
			i+1, e.DiscordID, e.GamesWon, e.GamesPlayed, e.Kills, e.Deaths, e.Assists)
	}
	s.ChannelMessageSendEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title: "Weekly leaderboard · " + week, Description: b.String(), Color: colorGold,
	})
}

func potentialPayout(bet *domain.Bet) int64 {
	return int64(float64(bet.Amount) * bet.Odds)
}

func linkErrorMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrAlreadyLinked):
		return "That discord user or riot account is already linked."
	case errors.Is(err, service.ErrRiotIDUnknown):
		return "Riot ID not found. Double-check the `Name#Tag`."
	default:
		return "Linking failed, try again later."
	}
}

func betErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrSelfBet):
		return "You can't bet on your own game."
	case errors.Is(err, service.ErrInvalidAmount):
		return "Bet amount must be a positive number."
	case errors.Is(err, service.ErrUnknownBetKind):
		return "Bet kind must be one of `win`, `loss`, `kda3`, `deaths7`, `longgame`."
	case errors.Is(err, repository.ErrNoOpenWindow):
		return "There's no open betting window on that player."
	case errors.Is(err, repository.ErrInsufficientBalance):
		return "You don't have enough coins for that stake."
	case errors.Is(err, repository.ErrAccountNotFound):
		return "Link your account first with `!link Name#Tag`."
	default:
		return "Bet failed, try again later."
	}
}
