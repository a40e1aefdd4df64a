package agent

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/types"
)

// HandlerFunc processes one inbound message and returns at most one reply.
// A nil reply with a nil error means the message was consumed silently.
type HandlerFunc func(msg types.Message) (*types.Message, error)

// Agent is the bus-facing surface of an actor. The bus owns delivery into
// Receive and execution via Dispatch during drain; everything else is the
// agent's own business.
type Agent interface {
	Name() string
	Role() string
	State() types.State
	Capabilities() []types.Capability

	// Receive enqueues an inbound message. Called by the bus delivery worker.
	Receive(msg types.Message)
	// PopInbox removes and returns the oldest inbound message.
	PopInbox() (types.Message, bool)
	// PopOutbox removes and returns the oldest self-initiated outbound message.
	PopOutbox() (types.Message, bool)
	// Dispatch runs the handler registered for the message kind.
	Dispatch(msg types.Message) (*types.Message, error)
}

// Base is the standard Agent implementation. Concrete agents are built by
// composing a Base with handler registrations and capability objects, not by
// embedding hierarchies.
type Base struct {
	name         string
	role         string
	capabilities []types.Capability

	mu       sync.Mutex
	state    types.State
	inbox    []types.Message
	outbox   []types.Message
	handlers map[types.Kind]HandlerFunc

	logger *zap.Logger
}

// New creates an agent shell in the idle state with a default PING handler.
func New(name, role string, logger *zap.Logger, caps ...types.Capability) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Base{
		name:         name,
		role:         role,
		capabilities: caps,
		state:        types.StateIdle,
		handlers:     make(map[types.Kind]HandlerFunc),
		logger:       logger.With(zap.String("agent", name)),
	}
	b.Handle(types.KindPing, b.handlePing)
	return b
}

func (b *Base) Name() string { return b.name }
func (b *Base) Role() string { return b.role }

// State returns the agent's current lifecycle state.
func (b *Base) State() types.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetState updates the agent's lifecycle state.
func (b *Base) SetState(s types.State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Capabilities returns the agent's capability tags.
func (b *Base) Capabilities() []types.Capability {
	out := make([]types.Capability, len(b.capabilities))
	copy(out, b.capabilities)
	return out
}

// Handle registers a handler for a message kind, replacing any previous one.
func (b *Base) Handle(kind types.Kind, h HandlerFunc) {
	b.mu.Lock()
	b.handlers[kind] = h
	b.mu.Unlock()
}

// Receive enqueues an inbound message.
func (b *Base) Receive(msg types.Message) {
	b.mu.Lock()
	b.inbox = append(b.inbox, msg)
	b.mu.Unlock()
	b.logger.Debug("message received",
		zap.String("kind", string(msg.Kind)),
		zap.String("from", msg.Sender),
	)
}

// Send enqueues a self-initiated outbound message for the next drain pass.
func (b *Base) Send(msg types.Message) {
	b.mu.Lock()
	b.outbox = append(b.outbox, msg)
	b.mu.Unlock()
}

// PopInbox removes and returns the oldest inbound message, FIFO.
func (b *Base) PopInbox() (types.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inbox) == 0 {
		return types.Message{}, false
	}
	msg := b.inbox[0]
	b.inbox = b.inbox[1:]
	return msg, true
}

// PopOutbox removes and returns the oldest outbound message, FIFO.
func (b *Base) PopOutbox() (types.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.outbox) == 0 {
		return types.Message{}, false
	}
	msg := b.outbox[0]
	b.outbox = b.outbox[1:]
	return msg, true
}

// InboxDepth returns the number of queued inbound messages.
func (b *Base) InboxDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inbox)
}

// Dispatch runs the registered handler for msg.Kind. An unregistered kind is
// a typed error, not a silent no-op.
func (b *Base) Dispatch(msg types.Message) (*types.Message, error) {
	b.mu.Lock()
	h, ok := b.handlers[msg.Kind]
	b.mu.Unlock()

	if !ok {
		return nil, types.Errorf(types.ErrUnknownKind,
			"agent %s has no handler for kind %s", b.name, msg.Kind)
	}
	return h(msg)
}

func (b *Base) handlePing(msg types.Message) (*types.Message, error) {
	reply := msg.Reply(b.name, types.KindPong).
		WithPayload(map[string]any{"status": "alive", "state": string(b.State())})
	return &reply, nil
}

// Info returns a read-only snapshot for the bus registry.
func (b *Base) Info() types.AgentInfo {
	return types.AgentInfo{
		Name:         b.name,
		Role:         b.role,
		State:        b.State(),
		Capabilities: b.Capabilities(),
		InboxDepth:   b.InboxDepth(),
	}
}

// HasCapability reports whether a carries the given capability tag.
func HasCapability(a Agent, cap types.Capability) bool {
	for _, c := range a.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}
