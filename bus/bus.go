package bus

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/internal/metrics"
	"github.com/BaSui01/agenthive/persistence"
	"github.com/BaSui01/agenthive/types"
)

const (
	// DefaultHistoryLimit bounds the in-memory delivery history.
	DefaultHistoryLimit = 1000

	// DefaultPopTimeout is the idle re-check interval of the delivery worker.
	DefaultPopTimeout = 100 * time.Millisecond
)

// WatchFunc observes every delivered message of a kind. Watchers run after
// delivery, for side effects only; they cannot veto or modify a message.
type WatchFunc func(msg types.Message)

// Stats is a point-in-time snapshot of bus accounting.
type Stats struct {
	Sent        int64 `json:"sent"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
	QueueDepth  int   `json:"queue_depth"`
	AgentCount  int   `json:"agent_count"`
	HistorySize int   `json:"history_size"`
}

// Bus routes messages between registered agents. Publish enqueues without
// blocking; a single worker goroutine performs deliveries in publish order.
type Bus struct {
	mu          sync.RWMutex
	agents      map[string]agent.Agent
	subscribers map[types.Kind]map[string]struct{}
	watchers    map[types.Kind][]WatchFunc

	qmu        sync.Mutex
	queue      []types.Message
	wake       chan struct{}
	popTimeout time.Duration

	hmu          sync.Mutex
	history      []types.Delivery
	historyLimit int

	sent      int64
	delivered int64
	failed    int64
	statMu    sync.Mutex

	closed   bool
	closeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	limiter *rate.Limiter
	store   persistence.MessageStore
	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates a bus and starts its delivery worker.
func New(opts ...Option) *Bus {
	b := &Bus{
		agents:       make(map[string]agent.Agent),
		subscribers:  make(map[types.Kind]map[string]struct{}),
		watchers:     make(map[types.Kind][]WatchFunc),
		wake:         make(chan struct{}, 1),
		popTimeout:   DefaultPopTimeout,
		historyLimit: DefaultHistoryLimit,
		done:         make(chan struct{}),
		tracer:       otel.Tracer("agenthive/bus"),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.wg.Add(1)
	go b.deliveryLoop()
	return b
}

// Register adds an agent to the registry. Names are unique.
func (b *Bus) Register(a agent.Agent) error {
	if a == nil || a.Name() == "" {
		return types.NewError(types.ErrUnknownAgent, "cannot register a nil or unnamed agent")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.agents[a.Name()]; exists {
		return types.Errorf(types.ErrDuplicateAgent, "agent %s is already registered", a.Name())
	}
	b.agents[a.Name()] = a
	b.logger.Info("agent registered",
		zap.String("agent", a.Name()),
		zap.String("role", a.Role()),
	)
	return nil
}

// Unregister removes an agent and all of its subscriptions. Removing an
// unknown name is a no-op.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.agents[name]; !exists {
		return
	}
	delete(b.agents, name)
	for _, subs := range b.subscribers {
		delete(subs, name)
	}
	b.logger.Info("agent unregistered", zap.String("agent", name))
}

// Get returns a registered agent by name.
func (b *Bus) Get(name string) (agent.Agent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.agents[name]
	return a, ok
}

// Agents returns a snapshot of every registered agent's info.
func (b *Bus) Agents() []types.AgentInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.AgentInfo, 0, len(b.agents))
	for _, a := range b.agents {
		out = append(out, types.AgentInfo{
			Name:         a.Name(),
			Role:         a.Role(),
			State:        a.State(),
			Capabilities: a.Capabilities(),
		})
	}
	return out
}

// Subscribe adds the agent to the broadcast group for a kind. The agent must
// be registered and the kind known.
func (b *Bus) Subscribe(name string, kind types.Kind) error {
	if !kind.Valid() {
		return types.Errorf(types.ErrUnknownKind, "cannot subscribe to unknown kind %q", kind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.agents[name]; !exists {
		return types.Errorf(types.ErrUnknownAgent, "cannot subscribe unregistered agent %s", name)
	}
	subs, ok := b.subscribers[kind]
	if !ok {
		subs = make(map[string]struct{})
		b.subscribers[kind] = subs
	}
	subs[name] = struct{}{}
	return nil
}

// Unsubscribe removes the agent from a kind's broadcast group. Idempotent.
func (b *Bus) Unsubscribe(name string, kind types.Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[kind]; ok {
		delete(subs, name)
	}
}

// Watch registers a bus-level observer for a kind.
func (b *Bus) Watch(kind types.Kind, fn WatchFunc) {
	b.mu.Lock()
	b.watchers[kind] = append(b.watchers[kind], fn)
	b.mu.Unlock()
}

// Publish enqueues a message for delivery. It never blocks on recipients and
// fails only when the bus is stopped or the kind is unknown.
func (b *Bus) Publish(ctx context.Context, msg types.Message) error {
	if !msg.Kind.Valid() {
		return types.Errorf(types.ErrUnknownKind, "cannot publish unknown kind %q", msg.Kind)
	}
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return types.NewError(types.ErrBusClosed, "bus is stopped")
	}
	b.qmu.Lock()
	b.queue = append(b.queue, msg)
	depth := len(b.queue)
	b.qmu.Unlock()
	b.closeMu.Unlock()

	b.statMu.Lock()
	b.sent++
	b.statMu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(string(msg.Kind))
		b.metrics.SetQueueDepth(depth)
	}
	_, span := b.tracer.Start(ctx, "bus.publish",
		trace.WithAttributes(
			attribute.String("message.kind", string(msg.Kind)),
			attribute.String("message.sender", msg.Sender),
		))
	span.End()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// deliveryLoop pops queued messages and hands them to recipient inboxes.
// A single goroutine preserves publish order.
func (b *Bus) deliveryLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.popTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-b.wake:
		case <-ticker.C:
			// Safety net against a missed wakeup.
		case <-b.done:
			// Flush whatever was enqueued before Stop.
			b.deliverPending()
			return
		}
		b.deliverPending()
	}
}

func (b *Bus) deliverPending() {
	for {
		b.qmu.Lock()
		if len(b.queue) == 0 {
			b.qmu.Unlock()
			return
		}
		msg := b.queue[0]
		b.queue = b.queue[1:]
		depth := len(b.queue)
		b.qmu.Unlock()

		if b.metrics != nil {
			b.metrics.SetQueueDepth(depth)
		}
		if b.limiter != nil {
			_ = b.limiter.Wait(context.Background())
		}
		b.deliver(msg)
	}
}

// deliver routes one message: direct when a recipient is named, broadcast to
// the kind's subscribers otherwise. The sender never receives its own
// broadcast.
func (b *Bus) deliver(msg types.Message) {
	b.mu.RLock()
	var targets []agent.Agent
	if msg.Recipient != "" {
		if a, ok := b.agents[msg.Recipient]; ok {
			targets = []agent.Agent{a}
		}
	} else {
		for name := range b.subscribers[msg.Kind] {
			if name == msg.Sender {
				continue
			}
			if a, ok := b.agents[name]; ok {
				targets = append(targets, a)
			}
		}
	}
	watchers := b.watchers[msg.Kind]
	b.mu.RUnlock()

	if msg.Recipient != "" && len(targets) == 0 {
		b.statMu.Lock()
		b.failed++
		b.statMu.Unlock()
		if b.metrics != nil {
			b.metrics.RecordFailure(string(types.ErrRecipientNotFound))
		}
		b.logger.Warn("recipient not found",
			zap.String("recipient", msg.Recipient),
			zap.String("kind", string(msg.Kind)),
			zap.String("sender", msg.Sender),
		)
		return
	}

	for _, a := range targets {
		a.Receive(msg)
	}

	b.statMu.Lock()
	b.delivered += int64(len(targets))
	b.statMu.Unlock()
	if b.metrics != nil {
		b.metrics.RecordDelivery(string(msg.Kind), len(targets))
	}

	b.recordHistory(msg, len(targets))
	b.mirrorToStore(msg)

	for _, fn := range watchers {
		b.runWatcher(fn, msg)
	}
}

// runWatcher isolates watcher panics so one bad observer cannot take down
// the delivery worker.
func (b *Bus) runWatcher(fn WatchFunc, msg types.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("watcher panicked",
				zap.String("kind", string(msg.Kind)),
				zap.Any("panic", r),
			)
		}
	}()
	fn(msg)
}

func (b *Bus) recordHistory(msg types.Message, recipients int) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.history = append(b.history, types.Delivery{
		Message:     msg,
		DeliveredAt: time.Now(),
		Recipients:  recipients,
	})
	if len(b.history) > b.historyLimit {
		keep := b.historyLimit / 2
		b.history = append([]types.Delivery(nil), b.history[len(b.history)-keep:]...)
	}
}

func (b *Bus) mirrorToStore(msg types.Message) {
	if b.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.store.SaveMessage(ctx, &msg); err != nil {
		b.logger.Warn("store mirror failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// History returns a copy of the delivery history, oldest first.
func (b *Bus) History() []types.Delivery {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	out := make([]types.Delivery, len(b.history))
	copy(out, b.history)
	return out
}

// HistoryByThread returns deliveries whose message belongs to a thread.
func (b *Bus) HistoryByThread(threadID string) []types.Delivery {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	var out []types.Delivery
	for _, d := range b.history {
		if d.Message.ThreadID == threadID {
			out = append(out, d)
		}
	}
	return out
}

// Flush blocks until the delivery queue is empty or the context is done.
// Tests and drain drivers use it to sequence delivery against dispatch.
func (b *Bus) Flush(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		b.qmu.Lock()
		empty := len(b.queue) == 0
		b.qmu.Unlock()
		if empty {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain performs one pass over every registered agent: drains inboxes through
// Dispatch, publishes produced replies, then flushes self-initiated outbox
// messages. Handler panics and errors are isolated per message. Returns the
// number of messages processed, counting both inbox dispatches and outbox
// publishes; a zero return means the pass found no work at all, so callers
// can use it as a quiescence signal.
func (b *Bus) Drain(ctx context.Context) int {
	start := time.Now()
	b.mu.RLock()
	snapshot := make([]agent.Agent, 0, len(b.agents))
	for _, a := range b.agents {
		snapshot = append(snapshot, a)
	}
	b.mu.RUnlock()

	processed := 0
	for _, a := range snapshot {
		for {
			msg, ok := a.PopInbox()
			if !ok {
				break
			}
			processed++
			b.dispatchOne(ctx, a, msg)
		}
		for {
			out, ok := a.PopOutbox()
			if !ok {
				break
			}
			processed++
			if err := b.Publish(ctx, out); err != nil {
				b.logger.Warn("outbox publish failed",
					zap.String("agent", a.Name()),
					zap.Error(err),
				)
			}
		}
	}
	if b.metrics != nil {
		b.metrics.RecordDrain(time.Since(start))
	}
	return processed
}

func (b *Bus) dispatchOne(ctx context.Context, a agent.Agent, msg types.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.statMu.Lock()
			b.failed++
			b.statMu.Unlock()
			if b.metrics != nil {
				b.metrics.RecordFailure("handler_panic")
			}
			b.logger.Error("handler panicked",
				zap.String("agent", a.Name()),
				zap.String("kind", string(msg.Kind)),
				zap.Any("panic", r),
			)
		}
	}()

	reply, err := a.Dispatch(msg)
	if err != nil {
		b.statMu.Lock()
		b.failed++
		b.statMu.Unlock()
		if b.metrics != nil {
			b.metrics.RecordFailure(string(types.GetErrorCode(err)))
		}
		b.logger.Warn("handler failed",
			zap.String("agent", a.Name()),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
		return
	}
	if reply != nil {
		if perr := b.Publish(ctx, *reply); perr != nil {
			b.logger.Warn("reply publish failed",
				zap.String("agent", a.Name()),
				zap.Error(perr),
			)
		}
	}
}

// Stats returns current accounting counters.
func (b *Bus) Stats() Stats {
	b.statMu.Lock()
	sent, delivered, failed := b.sent, b.delivered, b.failed
	b.statMu.Unlock()

	b.qmu.Lock()
	depth := len(b.queue)
	b.qmu.Unlock()

	b.mu.RLock()
	agents := len(b.agents)
	b.mu.RUnlock()

	b.hmu.Lock()
	historySize := len(b.history)
	b.hmu.Unlock()

	return Stats{
		Sent:        sent,
		Delivered:   delivered,
		Failed:      failed,
		QueueDepth:  depth,
		AgentCount:  agents,
		HistorySize: historySize,
	}
}

// Stop shuts the bus down. Messages already enqueued are still delivered;
// publishes after Stop fail with BUS_CLOSED. Idempotent.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.closeMu.Lock()
		b.closed = true
		b.closeMu.Unlock()
		close(b.done)
		b.wg.Wait()
		b.logger.Info("bus stopped", zap.Int64("delivered", b.Stats().Delivered))
	})
}
