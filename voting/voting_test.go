package voting

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMajority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ballots    []Ballot
		wantWinner string
		wantShare  float64
		conclusive bool
	}{
		{
			name:       "no ballots is inconclusive",
			ballots:    nil,
			conclusive: false,
		},
		{
			name: "clear winner",
			ballots: []Ballot{
				{Voter: "a", Choice: "x"},
				{Voter: "b", Choice: "x"},
				{Voter: "c", Choice: "y"},
			},
			wantWinner: "x",
			wantShare:  2.0 / 3.0,
			conclusive: true,
		},
		{
			name: "tie breaks toward first observed",
			ballots: []Ballot{
				{Voter: "a", Choice: "y"},
				{Voter: "b", Choice: "x"},
				{Voter: "c", Choice: "x"},
				{Voter: "d", Choice: "y"},
			},
			wantWinner: "y",
			wantShare:  0.5,
			conclusive: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Majority(tt.ballots)
			assert.Equal(t, tt.conclusive, res.Conclusive)
			if tt.conclusive {
				assert.Equal(t, tt.wantWinner, res.Winner)
				assert.InDelta(t, tt.wantShare, res.Share, 1e-9)
			}
		})
	}
}

func TestWeighted(t *testing.T) {
	t.Parallel()

	res := Weighted([]Ballot{
		{Voter: "a", Choice: "x", Weight: 0.5},
		{Voter: "b", Choice: "y", Weight: 2},
		{Voter: "c", Choice: "x"}, // defaults to 1
	})
	require.True(t, res.Conclusive)
	assert.Equal(t, "y", res.Winner)
	assert.InDelta(t, 2.0/3.5, res.Share, 1e-9)
	assert.InDelta(t, 1.5, res.Tallies["x"], 1e-9)
}

func TestConsensusScore_UnanimousAgreement(t *testing.T) {
	t.Parallel()

	res := ConsensusScore([]ScoreBallot{
		{Voter: "a", Scores: map[string]float64{"x": 1.0}},
		{Voter: "b", Scores: map[string]float64{"x": 1.0}},
		{Voter: "c", Scores: map[string]float64{"x": 1.0}},
	}, []string{"x"}, 0)

	require.True(t, res.Conclusive)
	assert.Equal(t, "x", res.Winner)
	assert.InDelta(t, 1.0, res.Agreement, 1e-9)
}

func TestConsensusScore_SplitIsInconclusive(t *testing.T) {
	t.Parallel()

	// Mean 0.5, variance 0.25, agreement 1-sqrt(0.25) = 0.5 < 0.6.
	res := ConsensusScore([]ScoreBallot{
		{Voter: "a", Scores: map[string]float64{"x": 1.0}},
		{Voter: "b", Scores: map[string]float64{"x": 0.0}},
	}, []string{"x"}, 0)

	assert.False(t, res.Conclusive)
	assert.Empty(t, res.Winner)
	assert.InDelta(t, 0.5, res.Agreement, 1e-9)
}

func TestConsensusScore_CustomThreshold(t *testing.T) {
	t.Parallel()

	ballots := []ScoreBallot{
		{Voter: "a", Scores: map[string]float64{"x": 0.9}},
		{Voter: "b", Scores: map[string]float64{"x": 0.7}},
	}
	// Agreement is 1-0.1 = 0.9; conclusive at 0.6, not at 0.95.
	assert.True(t, ConsensusScore(ballots, []string{"x"}, 0.6).Conclusive)
	assert.False(t, ConsensusScore(ballots, []string{"x"}, 0.95).Conclusive)
}

func TestConsensusScore_MissingScoresCountAsZero(t *testing.T) {
	t.Parallel()

	res := ConsensusScore([]ScoreBallot{
		{Voter: "a", Scores: map[string]float64{"x": 1.0, "y": 0.2}},
		{Voter: "b", Scores: map[string]float64{"y": 0.2}},
	}, []string{"x", "y"}, 0)

	// x mean 0.5 with high variance, y mean 0.2 with none; y has the higher
	// agreement but x the higher mean, so the tally is over x and fails.
	assert.False(t, res.Conclusive)
	assert.InDelta(t, 0.5, res.Tallies["x"], 1e-9)
	assert.InDelta(t, 0.2, res.Tallies["y"], 1e-9)
}

func TestRankedChoice(t *testing.T) {
	t.Parallel()

	res := RankedChoice([]RankedBallot{
		{Voter: "a", Ranking: []string{"x", "z"}},
		{Voter: "b", Ranking: []string{"y", "z"}},
		{Voter: "c", Ranking: []string{"z", "y"}},
		{Voter: "d", Ranking: []string{"y"}},
		{Voter: "e", Ranking: []string{"z", "x"}},
	})

	require.True(t, res.Conclusive)
	// x is eliminated first; its ballot exhausts to z, giving z 3 of 5.
	assert.Equal(t, "z", res.Winner)
	require.NotEmpty(t, res.Runoffs)
	assert.Equal(t, "x", res.Runoffs[0].Eliminated)
}

func TestTally_UnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := Tally(MethodConsensus, []Ballot{{Voter: "a", Choice: "x"}})
	require.Error(t, err)
	_, err = Tally(Method("ouija"), nil)
	require.Error(t, err)
}

func TestMajority_Deterministic(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		ballots := make([]Ballot, n)
		for i := range ballots {
			ballots[i] = Ballot{
				Voter:  rapid.StringMatching(`[a-e]`).Draw(rt, "voter"),
				Choice: rapid.SampledFrom([]string{"x", "y", "z"}).Draw(rt, "choice"),
			}
		}

		first := Majority(ballots)
		second := Majority(ballots)
		if first.Winner != second.Winner || first.Share != second.Share {
			rt.Fatalf("same ballots produced different results: %+v vs %+v", first, second)
		}

		// The winner's tally is maximal and the share is its fraction.
		var total float64
		for opt, v := range first.Tallies {
			total += v
			if v > first.Tallies[first.Winner] {
				rt.Fatalf("option %s out-tallies winner %s", opt, first.Winner)
			}
		}
		if math.Abs(first.Tallies[first.Winner]/total-first.Share) > 1e-9 {
			rt.Fatalf("share %f does not match winner fraction", first.Share)
		}
	})
}

func TestProperty_ConsensusAgreementBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("agreement stays in [0,1] for scores in [0,1]", prop.ForAll(
		func(scores []float64) bool {
			if len(scores) == 0 {
				return true
			}
			ballots := make([]ScoreBallot, len(scores))
			for i, s := range scores {
				ballots[i] = ScoreBallot{Voter: string(rune('a' + i%26)), Scores: map[string]float64{"x": s}}
			}
			res := ConsensusScore(ballots, []string{"x"}, 0.6)
			return res.Agreement >= -1e-9 && res.Agreement <= 1+1e-9
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.Property("identical scores always reach consensus", prop.ForAll(
		func(score float64, voters int) bool {
			ballots := make([]ScoreBallot, voters)
			for i := range ballots {
				ballots[i] = ScoreBallot{Voter: string(rune('a' + i%26)), Scores: map[string]float64{"x": score}}
			}
			res := ConsensusScore(ballots, []string{"x"}, 0.6)
			return res.Conclusive && math.Abs(res.Agreement-1.0) < 1e-9
		},
		gen.Float64Range(0, 1),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
