package debate

import (
	"strconv"
	"strings"

	"github.com/BaSui01/agenthive/voting"
)

func votingMethod(requested, fallback string) voting.Method {
	s := requested
	if s == "" {
		s = fallback
	}
	if s == "" {
		return voting.MethodMajority
	}
	return voting.Method(s)
}

func ballot(voter, choice string, weight float64) voting.Ballot {
	return voting.Ballot{Voter: voter, Choice: choice, Weight: weight}
}

func scoreBallot(voter string, scores map[string]float64) voting.ScoreBallot {
	return voting.ScoreBallot{Voter: voter, Scores: scores}
}

// tally runs the debate's configured method over the collected ballots.
func (m *Moderator) tally(d *Debate) voting.Result {
	switch d.Method {
	case voting.MethodConsensus:
		return voting.ConsensusScore(d.scoreBallots, d.Options, m.cfg.ConsensusThreshold)
	case voting.MethodWeighted:
		return voting.Weighted(d.ballots)
	case voting.MethodRankedChoice:
		// Single-choice ballots degrade to one-entry rankings.
		ranked := make([]voting.RankedBallot, 0, len(d.ballots))
		for _, b := range d.ballots {
			ranked = append(ranked, voting.RankedBallot{Voter: b.Voter, Ranking: []string{b.Choice}})
		}
		return voting.RankedChoice(ranked)
	default:
		return voting.Majority(d.ballots)
	}
}

// conclusionPayload builds the DEBATE_CONCLUSION payload: the outcome plus a
// short synthesis of the deliberation for the requester.
func conclusionPayload(d *Debate, result voting.Result) map[string]any {
	var b strings.Builder
	b.WriteString("Debate on \"" + d.Topic + "\" closed after ")
	b.WriteString(plural(len(d.Rounds), "round"))
	b.WriteString(" with ")
	b.WriteString(plural(len(d.Participants), "participant"))
	b.WriteString(". ")
	if result.Conclusive {
		b.WriteString("Outcome: " + result.Winner + ".")
	} else {
		b.WriteString("No consensus was reached.")
	}

	return map[string]any{
		keyDebateID:  d.ID,
		keyTopic:     d.Topic,
		keyQuestion:  d.Question,
		keyMethod:    string(d.Method),
		keyOptions:   append([]string(nil), d.Options...),
		"winner":     result.Winner,
		"conclusive": result.Conclusive,
		"agreement":  result.Agreement,
		"rounds":     len(d.Rounds),
		"synthesis":  b.String(),
	}
}

func plural(n int, noun string) string {
	s := strconv.Itoa(n) + " " + noun
	if n != 1 {
		s += "s"
	}
	return s
}
