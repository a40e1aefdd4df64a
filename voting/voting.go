// Package voting provides the pure tally functions used to conclude debates:
// majority, weighted, consensus scoring and ranked choice. All functions are
// deterministic over their input ordering; given identical ballots in the
// same order they produce bit-identical results.
package voting

import (
	"math"

	"github.com/BaSui01/agenthive/types"
)

// Method names a tally algorithm.
type Method string

const (
	MethodMajority     Method = "majority"
	MethodWeighted     Method = "weighted"
	MethodConsensus    Method = "consensus"
	MethodRankedChoice Method = "ranked_choice"
)

// Valid reports whether m names a known tally method.
func (m Method) Valid() bool {
	switch m {
	case MethodMajority, MethodWeighted, MethodConsensus, MethodRankedChoice:
		return true
	}
	return false
}

// DefaultConsensusThreshold is the minimum agreement level required to
// declare a consensus winner.
const DefaultConsensusThreshold = 0.6

// Ballot is a single-choice vote. Weight below or equal to zero counts as 1.
type Ballot struct {
	Voter  string  `json:"voter"`
	Choice string  `json:"choice"`
	Weight float64 `json:"weight,omitempty"`
}

// ScoreBallot assigns each option a score in [0,1]. Options the voter did not
// score count as 0.
type ScoreBallot struct {
	Voter  string             `json:"voter"`
	Scores map[string]float64 `json:"scores"`
}

// RankedBallot lists the voter's choices in preference order.
type RankedBallot struct {
	Voter   string   `json:"voter"`
	Ranking []string `json:"ranking"`
}

// EliminationRound records one instant-runoff round for inspection.
type EliminationRound struct {
	Tallies    map[string]float64 `json:"tallies"`
	Eliminated string             `json:"eliminated,omitempty"`
}

// Result is the outcome of one tally. Winner is meaningful only when
// Conclusive is true; an inconclusive result is a normal outcome, not an
// error.
type Result struct {
	Method     Method             `json:"method"`
	Winner     string             `json:"winner,omitempty"`
	Conclusive bool               `json:"conclusive"`
	Tallies    map[string]float64 `json:"tallies"`
	Share      float64            `json:"share"`     // winner tally / total
	Agreement  float64            `json:"agreement"` // consensus level of the winner
	Runoffs    []EliminationRound `json:"runoffs,omitempty"`
	Ballots    int                `json:"ballots"`
}

// Majority counts one vote per ballot. The winner is the option with the
// highest count; ties break toward the option observed first in ballot order.
func Majority(ballots []Ballot) Result {
	res := Result{Method: MethodMajority, Tallies: map[string]float64{}, Ballots: len(ballots)}
	if len(ballots) == 0 {
		return res
	}
	order := make([]string, 0, len(ballots))
	for _, b := range ballots {
		if _, seen := res.Tallies[b.Choice]; !seen {
			order = append(order, b.Choice)
		}
		res.Tallies[b.Choice]++
	}
	res.Winner, res.Share = bestOf(res.Tallies, order)
	res.Conclusive = true
	return res
}

// Weighted counts each ballot at its weight, defaulting to 1.
func Weighted(ballots []Ballot) Result {
	res := Result{Method: MethodWeighted, Tallies: map[string]float64{}, Ballots: len(ballots)}
	if len(ballots) == 0 {
		return res
	}
	order := make([]string, 0, len(ballots))
	for _, b := range ballots {
		w := b.Weight
		if w <= 0 {
			w = 1
		}
		if _, seen := res.Tallies[b.Choice]; !seen {
			order = append(order, b.Choice)
		}
		res.Tallies[b.Choice] += w
	}
	res.Winner, res.Share = bestOf(res.Tallies, order)
	res.Conclusive = true
	return res
}

// ConsensusScore computes, for each option, the mean and population variance
// of participant scores and an agreement level of 1 − sqrt(variance). The
// option with the highest mean wins, but only if its agreement level meets
// the threshold; otherwise the result is inconclusive with no winner.
// A threshold of 0 or below falls back to DefaultConsensusThreshold.
func ConsensusScore(ballots []ScoreBallot, options []string, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultConsensusThreshold
	}
	res := Result{Method: MethodConsensus, Tallies: map[string]float64{}, Ballots: len(ballots)}
	if len(ballots) == 0 || len(options) == 0 {
		return res
	}

	agreement := make(map[string]float64, len(options))
	for _, opt := range options {
		var sum float64
		for _, b := range ballots {
			sum += b.Scores[opt]
		}
		mean := sum / float64(len(ballots))

		var variance float64
		for _, b := range ballots {
			d := b.Scores[opt] - mean
			variance += d * d
		}
		variance /= float64(len(ballots))

		res.Tallies[opt] = mean
		agreement[opt] = 1 - math.Sqrt(variance)
	}

	winner, _ := bestOf(res.Tallies, options)
	res.Agreement = agreement[winner]
	if res.Agreement >= threshold {
		res.Winner = winner
		res.Conclusive = true
		res.Share = res.Tallies[winner]
	}
	return res
}

// RankedChoice runs instant-runoff elimination: count first preferences, and
// while no option holds a strict majority, eliminate the lowest-tallied
// option and redistribute its ballots to each voter's next surviving choice.
// Elimination ties remove the option observed latest in ballot order.
func RankedChoice(ballots []RankedBallot) Result {
	res := Result{Method: MethodRankedChoice, Tallies: map[string]float64{}, Ballots: len(ballots)}
	if len(ballots) == 0 {
		return res
	}

	order := make([]string, 0)
	seen := map[string]struct{}{}
	for _, b := range ballots {
		for _, opt := range b.Ranking {
			if _, ok := seen[opt]; !ok {
				seen[opt] = struct{}{}
				order = append(order, opt)
			}
		}
	}
	if len(order) == 0 {
		return res
	}

	eliminated := map[string]struct{}{}
	for {
		tallies := map[string]float64{}
		for _, opt := range order {
			if _, out := eliminated[opt]; !out {
				tallies[opt] = 0
			}
		}
		var counted float64
		for _, b := range ballots {
			for _, opt := range b.Ranking {
				if _, out := eliminated[opt]; out {
					continue
				}
				tallies[opt]++
				counted++
				break
			}
		}

		leader, _ := bestOf(tallies, order)
		round := EliminationRound{Tallies: tallies}
		if counted == 0 || tallies[leader]*2 > counted || len(tallies) == 1 {
			res.Runoffs = append(res.Runoffs, round)
			res.Tallies = tallies
			if counted > 0 {
				res.Winner = leader
				res.Conclusive = true
				res.Share = tallies[leader] / counted
			}
			return res
		}

		loser := worstOf(tallies, order)
		eliminated[loser] = struct{}{}
		round.Eliminated = loser
		res.Runoffs = append(res.Runoffs, round)
	}
}

// Tally dispatches single-choice ballots by method name. Ranked-choice and
// consensus ballots have their own entry points; asking for them here is a
// typed error.
func Tally(method Method, ballots []Ballot) (Result, error) {
	switch method {
	case MethodMajority:
		return Majority(ballots), nil
	case MethodWeighted:
		return Weighted(ballots), nil
	default:
		return Result{}, types.Errorf(types.ErrUnknownVoteKind,
			"method %q does not tally single-choice ballots", method)
	}
}

// bestOf returns the highest-tallied option and its share of the total,
// breaking ties toward the earliest entry in order.
func bestOf(tallies map[string]float64, order []string) (string, float64) {
	var winner string
	best := math.Inf(-1)
	var total float64
	for _, opt := range order {
		v, ok := tallies[opt]
		if !ok {
			continue
		}
		total += v
		if v > best {
			best = v
			winner = opt
		}
	}
	if total == 0 {
		return winner, 0
	}
	return winner, best / total
}

// worstOf returns the lowest-tallied option, breaking ties toward the latest
// entry in order.
func worstOf(tallies map[string]float64, order []string) string {
	var loser string
	worst := math.Inf(1)
	for _, opt := range order {
		v, ok := tallies[opt]
		if !ok {
			continue
		}
		if v <= worst {
			worst = v
			loser = opt
		}
	}
	return loser
}
