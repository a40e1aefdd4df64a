package coordinator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/debate"
	"github.com/BaSui01/agenthive/types"
)

// Worker is a debate-capable executor agent. It carries out assigned
// subtasks with the reasoning capability and argues in debates through the
// same reasoner.
type Worker struct {
	*agent.Base

	reasoner agent.Reasoner
	stance   string
	logger   *zap.Logger
}

// NewWorker creates a worker. The stance seeds the position label the worker
// argues from when the reasoner returns no structured position; distinct
// stances across a worker pool keep debates from collapsing into one option.
func NewWorker(name, stance string, reasoner agent.Reasoner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		Base:     agent.New(name, "worker", logger, types.CapDebate),
		reasoner: reasoner,
		stance:   stance,
		logger:   logger.With(zap.String("component", "worker"), zap.String("agent", name)),
	}
	w.Handle(types.KindTaskAssignment, w.handleAssignment)
	debate.EnableParticipant(w.Base, w, logger)
	return w
}

func (w *Worker) handleAssignment(msg types.Message) (*types.Message, error) {
	task := stringField(msg.Payload, keyTask)
	w.SetState(types.StateWorking)
	defer w.SetState(types.StateIdle)

	ctx, cancel := context.WithTimeout(context.Background(), reasoningTimeout)
	defer cancel()

	success := true
	result := ""
	if w.reasoner != nil {
		res, err := w.reasoner.Generate(ctx, agent.Prompt{Input: task})
		if err != nil {
			w.logger.Warn("task reasoning failed",
				zap.String("subtask_id", stringField(msg.Payload, keySubtaskID)),
				zap.Error(agent.GenerationError(err)),
			)
			success = false
			result = "reasoning failed"
		} else {
			result = res.Text
		}
	} else {
		result = "done: " + task
	}

	reply := msg.Reply(w.Name(), types.KindTaskResult).
		WithPayload(map[string]any{
			keyProjectID: stringField(msg.Payload, keyProjectID),
			keySubtaskID: stringField(msg.Payload, keySubtaskID),
			keySuccess:   success,
			keyResult:    result,
		})
	return &reply, nil
}

// Argue implements agent.Debater. The reasoner's structured output may carry
// an explicit position; otherwise the worker argues from its seeded stance.
func (w *Worker) Argue(ctx context.Context, p agent.DebatePrompt) (agent.ArgumentDraft, error) {
	draft := agent.ArgumentDraft{Position: w.stance}
	if draft.Position == "" {
		draft.Position = "for"
	}

	if w.reasoner == nil {
		draft.Reasoning = w.Name() + " holds position " + draft.Position + " on: " + p.Topic
		return draft, nil
	}

	prompt := agent.Prompt{
		System: "You are debating. State a position and reasoning.",
		Input:  p.Question,
		Context: map[string]any{
			"topic": p.Topic,
			"round": p.Round,
			"prior": p.Prior,
		},
	}
	res, err := w.reasoner.Generate(ctx, prompt)
	if err != nil {
		return agent.ArgumentDraft{}, agent.GenerationError(err)
	}
	if pos, ok := res.Structured["position"].(string); ok && pos != "" {
		draft.Position = pos
	}
	draft.Reasoning = res.Text
	if ev, ok := res.Structured["evidence"].([]string); ok {
		draft.Evidence = ev
	}
	return draft, nil
}

// Score implements agent.Debater: each option gets a score in [0,1]. The
// worker favors its own position and scores the rest by how often they were
// argued in the history it saw.
func (w *Worker) Score(ctx context.Context, p agent.BallotPrompt) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(p.Options))
	for _, opt := range p.Options {
		s := 0.2
		if opt == w.stance {
			s = 1.0
		} else {
			mentions := 0
			for _, a := range p.Arguments {
				if strings.Contains(a, "("+opt+")") {
					mentions++
				}
			}
			if len(p.Arguments) > 0 {
				s = 0.2 + 0.6*float64(mentions)/float64(len(p.Arguments))
			}
		}
		scores[opt] = s
	}
	return scores, nil
}
