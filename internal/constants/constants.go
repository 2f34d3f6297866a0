package constants

import "time"

// match claim lifecycle
const (
	ClaimStaleness        = 5 * time.Minute
	MinLinkedParticipants = 2
)

// betting windows
const (
	BetWindowCountdown = 10 * time.Minute
	MaxGameStartWindow = 40 * time.Minute
	MaxMatchWait       = 90 * time.Minute
	CancelPenalty      = 50
	StartingBalance    = 500
)

// odds model
const (
	HouseEdge       = 0.95
	KDAThreshold    = 3.0
	DeathsThreshold = 7
	LongGameMinutes = 30
	DurationOdds    = 1.8
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	MaxRateLimitRetries = 3
	MaxServerRetries    = 3
	RetryBackoffBase    = 1 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	LeaderboardLimit = 10
)
