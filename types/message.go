package types

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the purpose of a message. Routing, subscriptions and
// handler dispatch are all keyed by Kind.
type Kind string

const (
	KindRequest   Kind = "REQUEST"
	KindResponse  Kind = "RESPONSE"
	KindBroadcast Kind = "BROADCAST"
	KindError     Kind = "ERROR"
	KindPing      Kind = "PING"
	KindPong      Kind = "PONG"

	// Delegation traffic.
	KindTaskAssignment  Kind = "TASK_ASSIGNMENT"
	KindTaskResult      Kind = "TASK_RESULT"
	KindProgressRequest Kind = "PROGRESS_REQUEST"
	KindProgressReport  Kind = "PROGRESS_REPORT"

	// Debate traffic.
	KindDebateInvitation   Kind = "DEBATE_INVITATION"
	KindDebateAcceptance   Kind = "DEBATE_ACCEPTANCE"
	KindArgumentRequest    Kind = "ARGUMENT_REQUEST"
	KindArgumentSubmission Kind = "ARGUMENT_SUBMISSION"
	KindRequestVote        Kind = "REQUEST_VOTE"
	KindVoteSubmission     Kind = "VOTE_SUBMISSION"
	KindDebateConclusion   Kind = "DEBATE_CONCLUSION"
)

var knownKinds = map[Kind]struct{}{
	KindRequest: {}, KindResponse: {}, KindBroadcast: {}, KindError: {},
	KindPing: {}, KindPong: {},
	KindTaskAssignment: {}, KindTaskResult: {},
	KindProgressRequest: {}, KindProgressReport: {},
	KindDebateInvitation: {}, KindDebateAcceptance: {},
	KindArgumentRequest: {}, KindArgumentSubmission: {},
	KindRequestVote: {}, KindVoteSubmission: {}, KindDebateConclusion: {},
}

// Valid reports whether k is one of the known message kinds.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

const (
	// PriorityMin and PriorityMax bound the message priority range.
	PriorityMin = 1
	PriorityMax = 10
	// PriorityDefault is applied when no priority is given.
	PriorityDefault = 5
)

// Message is the unit of communication between agents. Identity fields never
// change after creation; delivery metadata is tracked by the bus, not here.
type Message struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Sender      string         `json:"sender"`
	Recipient   string         `json:"recipient,omitempty"` // empty ⇒ broadcast to Kind subscribers
	Kind        Kind           `json:"kind"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"payload,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
	RequiresAck bool           `json:"requires_ack"`
}

// NewMessage creates a message with a fresh ID, the current timestamp and the
// default priority.
func NewMessage(sender string, kind Kind) Message {
	return Message{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Sender:    sender,
		Kind:      kind,
		Priority:  PriorityDefault,
	}
}

// To sets the direct recipient.
func (m Message) To(recipient string) Message {
	m.Recipient = recipient
	return m
}

// WithPayload sets the structured payload.
func (m Message) WithPayload(payload map[string]any) Message {
	m.Payload = payload
	return m
}

// WithThread sets the correlation thread id.
func (m Message) WithThread(threadID string) Message {
	m.ThreadID = threadID
	return m
}

// WithPriority sets the priority, clamped to [PriorityMin, PriorityMax].
func (m Message) WithPriority(p int) Message {
	if p < PriorityMin {
		p = PriorityMin
	}
	if p > PriorityMax {
		p = PriorityMax
	}
	m.Priority = p
	return m
}

// WithAck marks the message as requiring acknowledgement.
func (m Message) WithAck() Message {
	m.RequiresAck = true
	return m
}

// Reply creates a response message addressed back to m's sender, carrying the
// same thread id.
func (m Message) Reply(sender string, kind Kind) Message {
	r := NewMessage(sender, kind)
	r.Recipient = m.Sender
	r.ThreadID = m.ThreadID
	return r
}

// Delivery records bus-side metadata for a delivered message. It lives next
// to, not inside, the immutable Message.
type Delivery struct {
	Message     Message   `json:"message"`
	DeliveredAt time.Time `json:"delivered_at"`
	Recipients  int       `json:"recipients"`
}
