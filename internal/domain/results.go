package domain

import "time"

// Result objects returned by the workflows. The presentation layer renders
// these; nothing here is user-facing text.

type SweepResult struct {
	Checked                 int
	NewMatches              []string
	SkippedAlreadyProcessed int
	SkippedNotEnoughPlayers int
	Errors                  []SweepError
}

type SweepError struct {
	MatchID string
	Err     error
}

type MatchAnalysis struct {
	MatchID      string
	GameStart    time.Time
	GameDuration time.Duration
	QueueID      int
	SoloGame     bool
	Participants []Participant
	MVP          *Participant
	Feeder       *Participant
	TrashTalks   []string
}

// Win reports whether the named account won this match.
func (a *MatchAnalysis) Win(discordID string) bool {
	for i := range a.Participants {
		if a.Participants[i].DiscordID == discordID {
			return a.Participants[i].Win
		}
	}
	return false
}

type SettledBet struct {
	Bet    Bet
	Payout int64
}

type SettlementResult struct {
	MatchID  string
	WindowID string
	TargetID string
	Winners  []SettledBet
	Losers   []SettledBet
}

type OddsQuote struct {
	TargetID string
	Win      float64
	Loss     float64
	KDAOver  float64
	Deaths   float64
	LongGame float64
}

func (q OddsQuote) For(kind BetKind) (float64, bool) {
	switch kind {
	case BetWin:
		return q.Win, true
	case BetLoss:
		return q.Loss, true
	case BetKDAOver:
		return q.KDAOver, true
	case BetFeedOver:
		return q.Deaths, true
	case BetLongGame:
		return q.LongGame, true
	}
	return 0, false
}

type RankSyncResult struct {
	Synced   int
	Promoted []string
	Demoted  []string
	Errors   []error
}
