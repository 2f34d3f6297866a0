package domain

import (
	"time"
)

type LinkedAccount struct {
	DiscordID      string
	Puuid          string
	GameName       string
	TagLine        string
	Region         string
	Balance        int64
	Tier           string
	Division       string
	LeaguePoints   int
	LastRankSyncAt time.Time
	LinkedAt       time.Time
	Unlinked       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *LinkedAccount) RiotID() string {
	return a.GameName + "#" + a.TagLine
}

// MatchRecord is the dedup unit. A row with Processing=true and no
// participants is a claim in progress; a row with participants is terminal
// and never overwritten.
type MatchRecord struct {
	MatchID      string
	Processing   bool
	ClaimedAt    time.Time
	GameStart    time.Time
	GameDuration time.Duration
	QueueID      int
	GameMode     string
	SoloGame     bool
	MvpPuuid     string
	FeederPuuid  string
	Participants []Participant
	ProcessedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Participant struct {
	MatchID     string
	Puuid       string
	DiscordID   string
	Champion    string
	Kills       int
	Deaths      int
	Assists     int
	DamageDealt int
	DamageTaken int
	Gold        int
	VisionScore int
	Win         bool
	TeamID      int
	MvpScore    float64
}

type WindowStatus string

const (
	WindowOpen      WindowStatus = "open"
	WindowClosed    WindowStatus = "closed"
	WindowMatched   WindowStatus = "matched"
	WindowCancelled WindowStatus = "cancelled"
)

type BetWindow struct {
	ID          string
	TargetID    string // discord id of the account being bet on
	Status      WindowStatus
	OpenedAt    time.Time
	ClosedAt    time.Time
	MatchID     string
	BetCount    int
	TotalStaked int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type BetKind string

const (
	BetWin      BetKind = "win"
	BetLoss     BetKind = "loss"
	BetKDAOver  BetKind = "kda3"
	BetFeedOver BetKind = "deaths7"
	BetLongGame BetKind = "longgame"
)

type BetResult string

const (
	BetPending   BetResult = "pending"
	BetWon       BetResult = "won"
	BetLost      BetResult = "lost"
	BetCancelled BetResult = "cancelled"
)

// Bet odds are quoted at placement time and never recomputed.
type Bet struct {
	ID        string
	BettorID  string
	TargetID  string
	Kind      BetKind
	Amount    int64
	Odds      float64
	Result    BetResult
	Payout    int64
	OpenedAt  time.Time // copied from the window, correlation key
	SettledAt time.Time
	CreatedAt time.Time
}

// LeaderboardEntry is keyed by (discord id, ISO week).
type LeaderboardEntry struct {
	DiscordID   string
	Week        string // e.g. "2026-W35"
	Kills       int
	Deaths      int
	Assists     int
	GamesPlayed int
	GamesWon    int
	HighestTier string
	UpdatedAt   time.Time
}

// ScopedGrant is a time-bounded capability (rank role, mvp role) on a
// subject. The expiry sweep removes lapsed grants idempotently.
type ScopedGrant struct {
	ID         string
	SubjectID  string
	Capability string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

const (
	CapabilityMVP = "mvp"
)

type Rank struct {
	Tier         string
	Division     string
	LeaguePoints int
	Wins         int
	Losses       int
}

func (r Rank) WinRate() float64 {
	total := r.Wins + r.Losses
	if total == 0 {
		return 0
	}
	return float64(r.Wins) / float64(total) * 100
}
