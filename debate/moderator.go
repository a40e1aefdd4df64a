package debate

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/config"
	"github.com/BaSui01/agenthive/internal/metrics"
	"github.com/BaSui01/agenthive/types"
	"github.com/BaSui01/agenthive/voting"
)

// Moderator is the agent that owns debates. It is the single writer for
// every debate it starts: argument and vote submissions mutate debate state
// only inside its handlers, which the bus drain serializes, and deadline
// expiry only inside CheckDeadlines, which the coordinator tick drives from
// the same goroutine as the drain. The mutex exists for the read side:
// Debate and Debates snapshot live state from arbitrary caller goroutines.
type Moderator struct {
	*agent.Base

	cfg config.DebateConfig

	mu      sync.Mutex
	debates map[string]*Debate
	order   []string

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewModerator creates a moderator agent. Register it on the bus before
// starting debates.
func NewModerator(name string, cfg config.DebateConfig, logger *zap.Logger, collector *metrics.Collector) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Moderator{
		Base:    agent.New(name, "moderator", logger),
		cfg:     cfg,
		debates: make(map[string]*Debate),
		metrics: collector,
		logger:  logger.With(zap.String("component", "moderator"), zap.String("agent", name)),
	}
	m.Handle(types.KindDebateAcceptance, m.handleAcceptance)
	m.Handle(types.KindArgumentSubmission, m.handleArgument)
	m.Handle(types.KindVoteSubmission, m.handleVote)
	return m
}

// StartOptions parameterizes one debate.
type StartOptions struct {
	Topic     string
	Question  string
	Requester string
	// ReplyThread, when set, is the thread id the DEBATE_CONCLUSION is
	// published under so the requester can correlate it with its request.
	// Defaults to the debate id.
	ReplyThread string
	Method      string
}

// StartDebate opens a debate over the given participants and immediately
// starts round 1, queueing one DEBATE_INVITATION per participant. The
// conclusion will be addressed to opts.Requester when the debate closes.
func (m *Moderator) StartDebate(opts StartOptions, participants []string) (Debate, error) {
	if len(participants) < m.minParticipants() {
		return Debate{}, types.Errorf(types.ErrTooFewDebaters,
			"need at least %d participants, got %d", m.minParticipants(), len(participants))
	}
	if max := m.maxParticipants(); len(participants) > max {
		participants = participants[:max]
	}
	vm := votingMethod(opts.Method, m.cfg.VotingMethod)
	if !vm.Valid() {
		return Debate{}, types.Errorf(types.ErrUnknownVoteKind, "unknown voting method %q", opts.Method)
	}

	d := &Debate{
		ID:           uuid.New().String(),
		Topic:        opts.Topic,
		Question:     opts.Question,
		Requester:    opts.Requester,
		ReplyThread:  opts.ReplyThread,
		Moderator:    m.Name(),
		Participants: append([]string(nil), participants...),
		Status:       StatusOpen,
		Method:       vm,
		CreatedAt:    time.Now(),
		voted:        make(map[string]bool),
	}
	if d.ReplyThread == "" {
		d.ReplyThread = d.ID
	}
	m.mu.Lock()
	m.debates[d.ID] = d
	m.order = append(m.order, d.ID)
	m.openRound(d)
	snap := d.Snapshot()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordDebateStarted()
	}
	m.logger.Info("debate started",
		zap.String("debate_id", d.ID),
		zap.String("topic", d.Topic),
		zap.Int("participants", len(participants)),
		zap.String("method", string(vm)),
	)
	return snap, nil
}

// Debate returns a snapshot of one debate.
func (m *Moderator) Debate(id string) (Debate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.debates[id]
	if !ok {
		return Debate{}, false
	}
	return d.Snapshot(), true
}

// Debates returns snapshots of all debates in start order.
func (m *Moderator) Debates() []Debate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Debate, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.debates[id].Snapshot())
	}
	return out
}

// openRound creates the next round and queues one argument request per
// participant. Round 1 uses DEBATE_INVITATION, later rounds ARGUMENT_REQUEST.
func (m *Moderator) openRound(d *Debate) {
	now := time.Now()
	r := &Round{
		Number:       len(d.Rounds) + 1,
		Participants: append([]string(nil), d.Participants...),
		Arguments:    make(map[string][]Argument),
		Status:       RoundOpen,
		OpenedAt:     now,
		Deadline:     now.Add(m.roundTimeout()),
	}
	d.Rounds = append(d.Rounds, r)
	d.Status = StatusActive

	kind := types.KindArgumentRequest
	if r.Number == 1 {
		kind = types.KindDebateInvitation
	}
	prior := make([]string, 0)
	for _, a := range d.allArguments() {
		prior = append(prior, a.Participant+" ("+a.Position+"): "+a.Reasoning)
	}
	for _, p := range r.Participants {
		msg := types.NewMessage(m.Name(), kind).
			To(p).
			WithThread(d.ID).
			WithPayload(map[string]any{
				keyDebateID: d.ID,
				keyTopic:    d.Topic,
				keyQuestion: d.Question,
				keyRound:    r.Number,
				keyDeadline: r.Deadline.UnixMilli(),
				keyArguments: append([]string(nil), prior...),
			})
		m.Send(msg)
	}
}

func (m *Moderator) handleAcceptance(msg types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := payloadString(msg.Payload, keyDebateID)
	d, ok := m.debates[id]
	if !ok {
		return m.reject(msg, types.ErrUnknownDebate, "no such debate"), nil
	}
	if !d.isParticipant(msg.Sender) {
		return m.reject(msg, types.ErrNotParticipant, "not a participant"), nil
	}
	m.logger.Debug("participant accepted",
		zap.String("debate_id", id),
		zap.String("participant", msg.Sender),
	)
	return nil, nil
}

// handleArgument records one submission. At most one argument per participant
// per round is accepted; late or duplicate submissions are rejected with a
// ROUND_CLOSED error message back to the sender and do not affect others.
func (m *Moderator) handleArgument(msg types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := payloadString(msg.Payload, keyDebateID)
	d, ok := m.debates[id]
	if !ok {
		return m.reject(msg, types.ErrUnknownDebate, "no such debate"), nil
	}
	if !d.isParticipant(msg.Sender) {
		return m.reject(msg, types.ErrNotParticipant, "not a participant"), nil
	}
	if d.Status != StatusActive {
		return m.reject(msg, types.ErrRoundClosed, "debate is not collecting arguments"), nil
	}
	r := d.currentRound()
	wantRound := payloadInt(msg.Payload, keyRound)
	if r == nil || r.Status != RoundOpen || (wantRound != 0 && wantRound != r.Number) {
		return m.reject(msg, types.ErrRoundClosed, "round is closed"), nil
	}
	if r.submitted(msg.Sender) {
		return m.reject(msg, types.ErrRoundClosed, "already submitted this round"), nil
	}

	r.Arguments[msg.Sender] = append(r.Arguments[msg.Sender], Argument{
		Participant: msg.Sender,
		Position:    payloadString(msg.Payload, keyPosition),
		Reasoning:   payloadString(msg.Payload, keyReasoning),
		Evidence:    payloadStrings(msg.Payload, keyEvidence),
		SubmittedAt: time.Now(),
	})
	m.logger.Debug("argument accepted",
		zap.String("debate_id", id),
		zap.String("participant", msg.Sender),
		zap.Int("round", r.Number),
	)

	// Completion check fires on every accepted submission.
	if r.complete() {
		m.closeRound(d)
	}
	return nil, nil
}

// closeRound finalizes the current round and either opens the next one or
// moves the debate to voting when the round cap is reached or positions have
// converged.
func (m *Moderator) closeRound(d *Debate) {
	r := d.currentRound()
	r.Status = RoundClosed
	r.ClosedAt = time.Now()

	if len(d.Rounds) < m.maxRounds() && !d.converged() {
		m.openRound(d)
		return
	}
	m.openVoting(d)
}

// openVoting compiles the option list from observed positions and queues one
// REQUEST_VOTE per participant carrying the options and the full argument
// history.
func (m *Moderator) openVoting(d *Debate) {
	d.Options = d.compileOptions()
	if len(d.Options) == 0 {
		// Nothing to vote over. Close inconclusively rather than hang.
		m.conclude(d)
		return
	}
	d.Status = StatusVoting
	d.voteDeadline = time.Now().Add(m.voteTimeout())

	history := make([]string, 0)
	for _, a := range d.allArguments() {
		history = append(history, a.Participant+" ("+a.Position+"): "+a.Reasoning)
	}
	for _, p := range d.Participants {
		msg := types.NewMessage(m.Name(), types.KindRequestVote).
			To(p).
			WithThread(d.ID).
			WithPayload(map[string]any{
				keyDebateID:  d.ID,
				keyOptions:   append([]string(nil), d.Options...),
				keyArguments: append([]string(nil), history...),
				keyMethod:    string(d.Method),
				keyDeadline:  d.voteDeadline.UnixMilli(),
			})
		m.Send(msg)
	}
	m.logger.Info("voting opened",
		zap.String("debate_id", d.ID),
		zap.Strings("options", d.Options),
	)
}

// handleVote records one ballot. A vote outside the voting phase, from a
// non-participant, a duplicate, or for an unknown option is rejected with
// INVALID_VOTE back to the sender.
func (m *Moderator) handleVote(msg types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := payloadString(msg.Payload, keyDebateID)
	d, ok := m.debates[id]
	if !ok {
		return m.reject(msg, types.ErrUnknownDebate, "no such debate"), nil
	}
	if !d.isParticipant(msg.Sender) {
		return m.reject(msg, types.ErrNotParticipant, "not a participant"), nil
	}
	if d.Status != StatusVoting {
		return m.reject(msg, types.ErrInvalidVote, "debate is not voting"), nil
	}
	if d.voted[msg.Sender] {
		return m.reject(msg, types.ErrInvalidVote, "already voted"), nil
	}

	if d.Method == voting.MethodConsensus {
		scores := payloadScores(msg.Payload, keyScores)
		if len(scores) == 0 {
			return m.reject(msg, types.ErrInvalidVote, "consensus vote requires scores"), nil
		}
		d.scoreBallots = append(d.scoreBallots, scoreBallot(msg.Sender, scores))
	} else {
		choice := payloadString(msg.Payload, keyChoice)
		if !contains(d.Options, choice) {
			return m.reject(msg, types.ErrInvalidVote, "choice is not an option"), nil
		}
		d.ballots = append(d.ballots, ballot(msg.Sender, choice, payloadFloat(msg.Payload, keyWeight)))
	}
	d.voted[msg.Sender] = true

	if len(d.voted) == len(d.Participants) {
		m.conclude(d)
	}
	return nil, nil
}

// conclude tallies whatever ballots were collected, stores the result, and
// queues a single DEBATE_CONCLUSION addressed to the original requester.
func (m *Moderator) conclude(d *Debate) {
	result := m.tally(d)
	d.Result = &result
	d.Status = StatusClosed
	d.ClosedAt = time.Now()

	if m.metrics != nil {
		m.metrics.RecordDebateConcluded(string(d.Method), result.Conclusive, len(d.Rounds))
	}
	m.logger.Info("debate concluded",
		zap.String("debate_id", d.ID),
		zap.String("winner", result.Winner),
		zap.Bool("conclusive", result.Conclusive),
		zap.Int("rounds", len(d.Rounds)),
	)

	if d.Requester == "" {
		return
	}
	msg := types.NewMessage(m.Name(), types.KindDebateConclusion).
		To(d.Requester).
		WithThread(d.ReplyThread).
		WithPayload(conclusionPayload(d, result))
	m.Send(msg)
}

// CheckDeadlines advances every debate whose current wait has expired: an
// open round past its deadline closes with the arguments collected so far,
// and an expired vote concludes with the ballots collected so far. Missing
// participants are simply excluded from the tally. Returns the ids of
// debates that advanced.
func (m *Moderator) CheckDeadlines(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var advanced []string
	for _, id := range m.order {
		d := m.debates[id]
		switch d.Status {
		case StatusActive:
			r := d.currentRound()
			if r != nil && r.Status == RoundOpen && now.After(r.Deadline) {
				m.logger.Warn("round deadline expired",
					zap.String("debate_id", id),
					zap.Int("round", r.Number),
				)
				m.closeRound(d)
				advanced = append(advanced, id)
			}
		case StatusVoting:
			if now.After(d.voteDeadline) {
				m.logger.Warn("vote deadline expired", zap.String("debate_id", id))
				m.conclude(d)
				advanced = append(advanced, id)
			}
		}
	}
	return advanced
}

// reject builds the error-kind reply that notifies a sender their submission
// was not counted.
func (m *Moderator) reject(msg types.Message, code types.ErrorCode, reason string) *types.Message {
	m.logger.Warn("submission rejected",
		zap.String("sender", msg.Sender),
		zap.String("kind", string(msg.Kind)),
		zap.String("code", string(code)),
		zap.String("reason", reason),
	)
	reply := msg.Reply(m.Name(), types.KindError).
		WithPayload(map[string]any{
			keyCode:     string(code),
			keyReason:   reason,
			keyDebateID: payloadString(msg.Payload, keyDebateID),
		})
	return &reply
}

func (m *Moderator) minParticipants() int {
	if m.cfg.MinParticipants >= MinParticipants {
		return m.cfg.MinParticipants
	}
	return MinParticipants
}

func (m *Moderator) maxParticipants() int {
	if m.cfg.MaxParticipants > 0 && m.cfg.MaxParticipants <= MaxParticipants {
		return m.cfg.MaxParticipants
	}
	return MaxParticipants
}

func (m *Moderator) selectionCap() int {
	if m.cfg.SelectionCap > 0 {
		return m.cfg.SelectionCap
	}
	return DefaultSelectionCap
}

func (m *Moderator) maxRounds() int {
	if m.cfg.MaxRounds > 0 {
		return m.cfg.MaxRounds
	}
	return 3
}

func (m *Moderator) roundTimeout() time.Duration {
	if m.cfg.RoundTimeout > 0 {
		return m.cfg.RoundTimeout
	}
	return 30 * time.Second
}

func (m *Moderator) voteTimeout() time.Duration {
	if m.cfg.VoteTimeout > 0 {
		return m.cfg.VoteTimeout
	}
	return 15 * time.Second
}

func contains(opts []string, s string) bool {
	for _, o := range opts {
		if o == s {
			return true
		}
	}
	return false
}
