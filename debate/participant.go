package debate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/types"
	"github.com/BaSui01/agenthive/voting"
)

// participantCallTimeout bounds each reasoning call a participant makes
// while arguing or scoring.
const participantCallTimeout = 20 * time.Second

// EnableParticipant registers the debate-side handlers on an agent: answering
// invitations and argument requests with arguments produced by the Debater
// capability, and vote requests with ballots. An acceptance is queued on the
// agent's outbox for round 1 before the argument reply.
func EnableParticipant(b *agent.Base, d agent.Debater, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("participant", b.Name()))

	argue := func(msg types.Message) (*types.Message, error) {
		prompt := agent.DebatePrompt{
			DebateID:  payloadString(msg.Payload, keyDebateID),
			Topic:     payloadString(msg.Payload, keyTopic),
			Question:  payloadString(msg.Payload, keyQuestion),
			Round:     payloadInt(msg.Payload, keyRound),
			Prior:     payloadStrings(msg.Payload, keyArguments),
			Requester: msg.Sender,
		}

		b.SetState(types.StateDebating)
		defer b.SetState(types.StateIdle)

		ctx, cancel := context.WithTimeout(context.Background(), participantCallTimeout)
		defer cancel()
		draft, err := d.Argue(ctx, prompt)
		if err != nil {
			logger.Warn("argue failed",
				zap.String("debate_id", prompt.DebateID),
				zap.Int("round", prompt.Round),
				zap.Error(err),
			)
			// A participant that cannot argue stays silent; the round
			// deadline excludes it from the tally.
			return nil, err
		}

		reply := msg.Reply(b.Name(), types.KindArgumentSubmission).
			WithPayload(map[string]any{
				keyDebateID:  prompt.DebateID,
				keyRound:     prompt.Round,
				keyPosition:  draft.Position,
				keyReasoning: draft.Reasoning,
				keyEvidence:  draft.Evidence,
			})
		return &reply, nil
	}

	b.Handle(types.KindDebateInvitation, func(msg types.Message) (*types.Message, error) {
		accept := msg.Reply(b.Name(), types.KindDebateAcceptance).
			WithPayload(map[string]any{keyDebateID: payloadString(msg.Payload, keyDebateID)})
		b.Send(accept)
		return argue(msg)
	})
	b.Handle(types.KindArgumentRequest, argue)

	b.Handle(types.KindRequestVote, func(msg types.Message) (*types.Message, error) {
		debateID := payloadString(msg.Payload, keyDebateID)
		prompt := agent.BallotPrompt{
			DebateID:  debateID,
			Options:   payloadStrings(msg.Payload, keyOptions),
			Arguments: payloadStrings(msg.Payload, keyArguments),
		}

		ctx, cancel := context.WithTimeout(context.Background(), participantCallTimeout)
		defer cancel()
		scores, err := d.Score(ctx, prompt)
		if err != nil {
			logger.Warn("score failed", zap.String("debate_id", debateID), zap.Error(err))
			return nil, err
		}

		payload := map[string]any{keyDebateID: debateID}
		if votingMethod(payloadString(msg.Payload, keyMethod), "") == voting.MethodConsensus {
			payload[keyScores] = scores
		} else {
			payload[keyChoice] = topScored(prompt.Options, scores)
		}
		reply := msg.Reply(b.Name(), types.KindVoteSubmission).WithPayload(payload)
		return &reply, nil
	})
}

// topScored picks the highest-scored option, ties broken by option order.
func topScored(options []string, scores map[string]float64) string {
	if len(options) == 0 {
		return ""
	}
	best := options[0]
	for _, opt := range options[1:] {
		if scores[opt] > scores[best] {
			best = opt
		}
	}
	return best
}
