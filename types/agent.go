package types

// State represents the lifecycle state of an agent.
type State string

const (
	StateIdle     State = "idle"
	StateThinking State = "thinking"
	StateWorking  State = "working"
	StateDebating State = "debating"
	StateError    State = "error"
)

// Capability is a tag describing something an agent can do. Capabilities are
// used for participant selection, never for dispatch.
type Capability string

const (
	// CapDebate marks an agent that can argue and vote in debates.
	CapDebate Capability = "can-debate"
	// CapMemory marks an agent that enriches its prompts from a memory index.
	CapMemory Capability = "can-remember"
	// CapPlan marks an agent that decomposes work into subtask plans.
	CapPlan Capability = "can-plan"
)

// AgentInfo is a read-only snapshot of a registered agent, as exposed by the
// bus registry.
type AgentInfo struct {
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	State        State        `json:"state"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	InboxDepth   int          `json:"inbox_depth"`
}
