package coordinator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/types"
)

// ResponseManager is the bus-facing identity of an external caller. It is a
// regular registered agent whose handlers resolve per-request futures keyed
// by thread id, so callers block on a channel receive instead of polling
// history.
type ResponseManager struct {
	*agent.Base

	mu      sync.Mutex
	pending map[string]chan types.Message

	logger *zap.Logger
}

// NewResponseManager creates the caller-side agent under the given name.
func NewResponseManager(name string, logger *zap.Logger) *ResponseManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	rm := &ResponseManager{
		Base:    agent.New(name, "requester", logger),
		pending: make(map[string]chan types.Message),
		logger:  logger.With(zap.String("component", "response_manager")),
	}
	rm.Handle(types.KindResponse, rm.resolve)
	rm.Handle(types.KindDebateConclusion, rm.resolve)
	rm.Handle(types.KindError, rm.resolve)
	rm.Handle(types.KindProgressReport, rm.resolve)
	return rm
}

// Expect registers interest in the outcome of a thread. The returned channel
// receives exactly one terminal message for the thread; Forget releases it.
func (rm *ResponseManager) Expect(threadID string) <-chan types.Message {
	ch := make(chan types.Message, 1)
	rm.mu.Lock()
	rm.pending[threadID] = ch
	rm.mu.Unlock()
	return ch
}

// Forget drops the future for a thread. Late arrivals for a forgotten thread
// are logged and discarded; in-flight work is never retracted.
func (rm *ResponseManager) Forget(threadID string) {
	rm.mu.Lock()
	delete(rm.pending, threadID)
	rm.mu.Unlock()
}

func (rm *ResponseManager) resolve(msg types.Message) (*types.Message, error) {
	rm.mu.Lock()
	ch, ok := rm.pending[msg.ThreadID]
	if ok {
		delete(rm.pending, msg.ThreadID)
	}
	rm.mu.Unlock()

	if !ok {
		rm.logger.Debug("unmatched terminal message",
			zap.String("thread_id", msg.ThreadID),
			zap.String("kind", string(msg.Kind)),
			zap.String("sender", msg.Sender),
		)
		return nil, nil
	}
	ch <- msg
	return nil, nil
}
