package agent

import "context"

// ArgumentDraft is a debate argument produced by a Debater, before the
// moderator records it against a round.
type ArgumentDraft struct {
	Position  string   `json:"position"` // free label: for, against, nuanced, ...
	Reasoning string   `json:"reasoning"`
	Evidence  []string `json:"evidence,omitempty"`
}

// DebatePrompt carries everything a participant needs to argue one round.
type DebatePrompt struct {
	DebateID  string   `json:"debate_id"`
	Topic     string   `json:"topic"`
	Question  string   `json:"question"`
	Round     int      `json:"round"`
	Prior     []string `json:"prior,omitempty"` // summaries of earlier arguments
	Deadline  int64    `json:"deadline_unix_ms,omitempty"`
	Requester string   `json:"requester,omitempty"`
}

// BallotPrompt carries the compiled options and argument history a
// participant votes over.
type BallotPrompt struct {
	DebateID  string   `json:"debate_id"`
	Options   []string `json:"options"`
	Arguments []string `json:"arguments,omitempty"`
}

// Debater is the optional debate capability. Presence is discovered by type
// assertion on a registered agent, never by attribute probing.
type Debater interface {
	// Argue produces this agent's argument for one round.
	Argue(ctx context.Context, p DebatePrompt) (ArgumentDraft, error)
	// Score assigns each option a score in [0,1] for consensus voting.
	Score(ctx context.Context, p BallotPrompt) (map[string]float64, error)
}

// Remembering is the optional memory capability: the agent enriches its
// reasoning input from a memory index. Correctness never depends on it.
type Remembering interface {
	Remember(ctx context.Context, content string, metadata map[string]string) error
	Recall(ctx context.Context, query string, topK int) ([]string, error)
}

// AsDebater returns the agent's debate capability, if it has one.
func AsDebater(a Agent) (Debater, bool) {
	d, ok := a.(Debater)
	return d, ok
}

// AsRemembering returns the agent's memory capability, if it has one.
func AsRemembering(a Agent) (Remembering, bool) {
	r, ok := a.(Remembering)
	return r, ok
}
