package scoring

import (
	"math"
	"time"

	"riftbot/internal/constants"
	"riftbot/internal/domain"

	"github.com/shopspring/decimal"
)

// KDA uses the perfect-KDA convention: zero deaths yields kills+assists, not
// infinity.
func KDA(kills, deaths, assists int) float64 {
	if deaths == 0 {
		return float64(kills + assists)
	}
	return float64(kills+assists) / float64(deaths)
}

// TeamAggregate holds one team's damage totals. MVP scores are relative to
// the player's own team, never the whole match.
type TeamAggregate struct {
	DamageDealt int
	DamageTaken int
}

// Aggregate sums damage per team id across all participants.
func Aggregate(participants []domain.Participant) map[int]TeamAggregate {
	teams := make(map[int]TeamAggregate)
	for _, p := range participants {
		agg := teams[p.TeamID]
		agg.DamageDealt += p.DamageDealt
		agg.DamageTaken += p.DamageTaken
		teams[p.TeamID] = agg
	}
	return teams
}

// MvpScore: kda * (damageShare*0.6 + tankShare*0.4) * 1.2 win bonus, scaled
// by 10, capped at 100, one decimal.
func MvpScore(p domain.Participant, team TeamAggregate) float64 {
	var damageShare, tankShare float64
	if team.DamageDealt > 0 {
		damageShare = float64(p.DamageDealt) / float64(team.DamageDealt)
	}
	if team.DamageTaken > 0 {
		tankShare = float64(p.DamageTaken) / float64(team.DamageTaken)
	}

	score := KDA(p.Kills, p.Deaths, p.Assists) * (damageShare*0.6 + tankShare*0.4)
	if p.Win {
		score *= 1.2
	}
	score *= 10
	if score > 100 {
		score = 100
	}
	return round1(score)
}

// SelectMVP returns the index of the highest-scoring participant. Exact ties
// keep the first encountered; the secondary ordering is deliberately left to
// slice order.
func SelectMVP(participants []domain.Participant, teams map[int]TeamAggregate) int {
	best := -1
	var bestScore float64
	for i, p := range participants {
		score := MvpScore(p, teams[p.TeamID])
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// SelectFeeder returns the index of the worst performer. Anyone with ten or
// more deaths outranks anyone below the threshold regardless of KDA; within
// the same side of the threshold the lowest KDA wins, first encountered on
// ties.
func SelectFeeder(participants []domain.Participant) int {
	best := -1
	var bestHeavy bool
	var bestKDA float64
	for i, p := range participants {
		heavy := p.Deaths >= 10
		kda := KDA(p.Kills, p.Deaths, p.Assists)
		switch {
		case best == -1:
		case heavy && !bestHeavy:
		case heavy == bestHeavy && kda < bestKDA:
		default:
			continue
		}
		best = i
		bestHeavy = heavy
		bestKDA = kda
	}
	return best
}

// BettingOdds quotes the five bet kinds from the target's recent form. The
// piecewise curves are deliberately crude; the house edge scales everything
// down before quoting.
func BettingOdds(targetID string, winRate, avgKDA, avgDeaths float64) domain.OddsQuote {
	return domain.OddsQuote{
		TargetID: targetID,
		Win:      withHouseEdge(rawWinOdds(winRate)),
		Loss:     withHouseEdge(rawLossOdds(winRate)),
		KDAOver:  withHouseEdge(rawKDAOdds(avgKDA)),
		Deaths:   withHouseEdge(rawDeathsOdds(avgDeaths)),
		LongGame: withHouseEdge(constants.DurationOdds),
	}
}

// rawWinOdds: 1.5x-2.5x for players above 50% win rate, 2.0x-4.0x below.
func rawWinOdds(winRate float64) float64 {
	winRate = clamp(winRate, 0, 100)
	if winRate > 50 {
		return 1.5 + (100-winRate)/50
	}
	return 2.0 + (50-winRate)/50*2.0
}

// rawLossOdds is the inverse curve over the loss rate.
func rawLossOdds(winRate float64) float64 {
	lossRate := clamp(100-winRate, 0, 100)
	if lossRate > 50 {
		return 1.5 + (100-lossRate)/50
	}
	return 2.0 + (50-lossRate)/50*2.0
}

// rawKDAOdds anchors at 2.0x for an average KDA at the 3.0 threshold and
// adjusts linearly away from it.
func rawKDAOdds(avgKDA float64) float64 {
	return clamp(2.0+(constants.KDAThreshold-avgKDA)*0.3, 1.2, 4.0)
}

// rawDeathsOdds anchors at 2.0x for an average of 7 deaths.
func rawDeathsOdds(avgDeaths float64) float64 {
	return clamp(2.0+(float64(constants.DeathsThreshold)-avgDeaths)*0.2, 1.2, 4.0)
}

func withHouseEdge(raw float64) float64 {
	return round1(raw * constants.HouseEdge)
}

// Outcome is one participant's result, the thing a bet predicate runs
// against.
type Outcome struct {
	Win          bool
	Kills        int
	Deaths       int
	Assists      int
	GameDuration time.Duration
}

// EvaluateBet runs the bet kind's predicate against the outcome. Unknown
// kinds lose, they never error.
func EvaluateBet(kind domain.BetKind, outcome Outcome) bool {
	switch kind {
	case domain.BetWin:
		return outcome.Win
	case domain.BetLoss:
		return !outcome.Win
	case domain.BetKDAOver:
		return KDA(outcome.Kills, outcome.Deaths, outcome.Assists) > constants.KDAThreshold
	case domain.BetFeedOver:
		return outcome.Deaths > constants.DeathsThreshold
	case domain.BetLongGame:
		return outcome.GameDuration > constants.LongGameMinutes*time.Minute
	}
	return false
}

// Payout is inclusive of principal and always rounds down. Decimal math so
// floor(100 * 2.27) is exactly 227 and never a float artifact away from it.
func Payout(amount int64, odds float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(odds)).
		Floor().
		IntPart()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
