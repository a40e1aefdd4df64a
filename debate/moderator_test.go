package debate_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/bus"
	"github.com/BaSui01/agenthive/config"
	"github.com/BaSui01/agenthive/debate"
	"github.com/BaSui01/agenthive/types"
)

// scriptedDebater argues a fixed position and scores every option the same
// way, so tallies are deterministic regardless of drain order.
type scriptedDebater struct {
	position string
	scores   map[string]float64
}

func (s scriptedDebater) Argue(_ context.Context, p agent.DebatePrompt) (agent.ArgumentDraft, error) {
	return agent.ArgumentDraft{
		Position:  s.position,
		Reasoning: "round " + strconv.Itoa(p.Round) + " argument for " + s.position,
		Evidence:  []string{"observation"},
	}, nil
}

func (s scriptedDebater) Score(_ context.Context, p agent.BallotPrompt) (map[string]float64, error) {
	out := make(map[string]float64, len(p.Options))
	for _, opt := range p.Options {
		out[opt] = s.scores[opt]
	}
	return out, nil
}

type participant struct {
	*agent.Base
	scriptedDebater
}

func newParticipant(name, position string, scores map[string]float64) *participant {
	p := &participant{
		Base:            agent.New(name, "debater", zap.NewNop(), types.CapDebate),
		scriptedDebater: scriptedDebater{position: position, scores: scores},
	}
	debate.EnableParticipant(p.Base, p, zap.NewNop())
	return p
}

func debateConfig() config.DebateConfig {
	return config.DebateConfig{
		MaxRounds:          3,
		MinParticipants:    2,
		MaxParticipants:    7,
		RoundTimeout:       time.Hour,
		VoteTimeout:        time.Hour,
		ConsensusThreshold: 0.6,
		VotingMethod:       "majority",
	}
}

// pump alternates delivery and drain until the system is quiescent.
func pump(t *testing.T, b *bus.Bus) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		fctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		require.NoError(t, b.Flush(fctx))
		cancel()
		time.Sleep(5 * time.Millisecond)
		if b.Drain(ctx) == 0 {
			return
		}
	}
	t.Fatal("bus never became quiescent")
}

func TestDebate_FullLifecycleThreeRounds(t *testing.T) {
	t.Parallel()

	b := bus.New()
	t.Cleanup(b.Stop)

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	requester := agent.New("user", "requester", zap.NewNop())
	var conclusion types.Message
	requester.Handle(types.KindDebateConclusion, func(msg types.Message) (*types.Message, error) {
		conclusion = msg
		return nil, nil
	})

	// Everyone prefers "nuanced" at the ballot box so the outcome is stable.
	scores := map[string]float64{"for": 0.1, "against": 0.2, "nuanced": 0.9}
	p1 := newParticipant("p1", "for", scores)
	p2 := newParticipant("p2", "against", scores)
	p3 := newParticipant("p3", "nuanced", scores)

	for _, a := range []agent.Agent{mod, requester, p1, p2, p3} {
		require.NoError(t, b.Register(a))
	}

	d, err := mod.StartDebate(debate.StartOptions{
		Topic:     "rollout strategy",
		Question:  "how should we roll out?",
		Requester: "user",
	}, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.Equal(t, debate.StatusActive, d.Status)

	pump(t, b)

	got, ok := mod.Debate(d.ID)
	require.True(t, ok)
	assert.Equal(t, debate.StatusClosed, got.Status)
	assert.Len(t, got.Rounds, 3, "three distinct positions never converge")
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Conclusive)
	assert.Equal(t, "nuanced", got.Result.Winner)
	assert.ElementsMatch(t, []string{"for", "against", "nuanced"}, got.Options)

	require.NotEmpty(t, conclusion.ID, "requester must receive the conclusion")
	assert.Equal(t, d.ID, conclusion.ThreadID)
	assert.Equal(t, "nuanced", conclusion.Payload["winner"])
}

func TestDebate_ConvergenceShortCircuitsRounds(t *testing.T) {
	t.Parallel()

	b := bus.New()
	t.Cleanup(b.Stop)

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	requester := agent.New("user", "requester", zap.NewNop())
	requester.Handle(types.KindDebateConclusion, func(types.Message) (*types.Message, error) {
		return nil, nil
	})

	scores := map[string]float64{"for": 1.0}
	p1 := newParticipant("p1", "for", scores)
	p2 := newParticipant("p2", "for", scores)
	for _, a := range []agent.Agent{mod, requester, p1, p2} {
		require.NoError(t, b.Register(a))
	}

	d, err := mod.StartDebate(debate.StartOptions{
		Topic: "t", Question: "q", Requester: "user",
	}, []string{"p1", "p2"})
	require.NoError(t, err)

	pump(t, b)

	got, _ := mod.Debate(d.ID)
	assert.Equal(t, debate.StatusClosed, got.Status)
	assert.Len(t, got.Rounds, 1, "a unanimous round ends the argument phase")
	require.NotNil(t, got.Result)
	assert.Equal(t, "for", got.Result.Winner)
}

func TestStartDebate_TooFewParticipants(t *testing.T) {
	t.Parallel()

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	_, err := mod.StartDebate(debate.StartOptions{Topic: "t", Question: "q"}, []string{"only"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTooFewDebaters))
}

func TestModerator_RejectsBadSubmissions(t *testing.T) {
	t.Parallel()

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	d, err := mod.StartDebate(debate.StartOptions{Topic: "t", Question: "q"}, []string{"p1", "p2"})
	require.NoError(t, err)

	submit := func(sender, debateID string, round int) *types.Message {
		msg := types.NewMessage(sender, types.KindArgumentSubmission).
			To("moderator").
			WithPayload(map[string]any{
				"debate_id": debateID,
				"round":     round,
				"position":  "for",
				"reasoning": "because",
			})
		reply, derr := mod.Dispatch(msg)
		require.NoError(t, derr)
		return reply
	}

	// Unknown debate.
	reply := submit("p1", "no-such-debate", 1)
	require.NotNil(t, reply)
	assert.Equal(t, types.KindError, reply.Kind)
	assert.Equal(t, string(types.ErrUnknownDebate), reply.Payload["code"])

	// Non-participant.
	reply = submit("stranger", d.ID, 1)
	require.NotNil(t, reply)
	assert.Equal(t, string(types.ErrNotParticipant), reply.Payload["code"])

	// First submission is accepted silently.
	reply = submit("p1", d.ID, 1)
	assert.Nil(t, reply)

	// Duplicate in the same round is rejected.
	reply = submit("p1", d.ID, 1)
	require.NotNil(t, reply)
	assert.Equal(t, string(types.ErrRoundClosed), reply.Payload["code"])

	// Stale round number is rejected.
	reply = submit("p2", d.ID, 99)
	require.NotNil(t, reply)
	assert.Equal(t, string(types.ErrRoundClosed), reply.Payload["code"])
}

func TestModerator_RejectsVotesOutsideVotingPhase(t *testing.T) {
	t.Parallel()

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	d, err := mod.StartDebate(debate.StartOptions{Topic: "t", Question: "q"}, []string{"p1", "p2"})
	require.NoError(t, err)

	vote := types.NewMessage("p1", types.KindVoteSubmission).
		To("moderator").
		WithPayload(map[string]any{"debate_id": d.ID, "choice": "for"})
	reply, derr := mod.Dispatch(vote)
	require.NoError(t, derr)
	require.NotNil(t, reply)
	assert.Equal(t, types.KindError, reply.Kind)
	assert.Equal(t, string(types.ErrInvalidVote), reply.Payload["code"])
}

func TestCheckDeadlines_AdvancesStalledDebate(t *testing.T) {
	t.Parallel()

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	d, err := mod.StartDebate(debate.StartOptions{Topic: "t", Question: "q", Requester: "user"},
		[]string{"p1", "p2"})
	require.NoError(t, err)

	// Only p1 ever argues; p2 stays silent past every deadline.
	msg := types.NewMessage("p1", types.KindArgumentSubmission).
		To("moderator").
		WithPayload(map[string]any{
			"debate_id": d.ID, "round": 1, "position": "for", "reasoning": "because",
		})
	_, derr := mod.Dispatch(msg)
	require.NoError(t, derr)

	// Expire rounds one by one, then the vote.
	future := time.Now()
	for i := 0; i < 4; i++ {
		future = future.Add(2 * time.Hour)
		mod.CheckDeadlines(future)
	}

	got, ok := mod.Debate(d.ID)
	require.True(t, ok)
	assert.Equal(t, debate.StatusClosed, got.Status)
	require.NotNil(t, got.Result)
	assert.False(t, got.Result.Conclusive, "no ballots were cast")
	assert.Len(t, got.Rounds, 3)
}

func TestModerator_SnapshotsSafeDuringLiveDebate(t *testing.T) {
	t.Parallel()

	b := bus.New()
	t.Cleanup(b.Stop)

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	scores := map[string]float64{"for": 0.9, "against": 0.1}
	p1 := newParticipant("p1", "for", scores)
	p2 := newParticipant("p2", "against", scores)
	for _, a := range []agent.Agent{mod, p1, p2} {
		require.NoError(t, b.Register(a))
	}

	d, err := mod.StartDebate(debate.StartOptions{Topic: "t", Question: "q"},
		[]string{"p1", "p2"})
	require.NoError(t, err)

	// A monitoring caller reads snapshots while the drive loop mutates the
	// debate. Meaningful under the race detector.
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			mod.Debates()
			mod.Debate(d.ID)
		}
	}()

	pump(t, b)
	close(stop)
	<-readerDone

	got, ok := mod.Debate(d.ID)
	require.True(t, ok)
	assert.Equal(t, debate.StatusClosed, got.Status)
}

func TestManager_SelectionCappedAtFive(t *testing.T) {
	t.Parallel()

	b := bus.New()
	t.Cleanup(b.Stop)

	mod := debate.NewModerator("moderator", debateConfig(), zap.NewNop(), nil)
	require.NoError(t, b.Register(mod))
	scores := map[string]float64{"for": 1.0}
	for i := 1; i <= 6; i++ {
		require.NoError(t, b.Register(newParticipant("p"+strconv.Itoa(i), "for", scores)))
	}

	mgr := debate.NewManager(b, mod, zap.NewNop())
	require.Len(t, mgr.EligibleParticipants(), 6)

	d, err := mgr.StartDebate(debate.StartOptions{Topic: "t", Question: "q"})
	require.NoError(t, err)
	assert.Len(t, d.Participants, 5, "selection truncates to the default cap")
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, d.Participants)
}
