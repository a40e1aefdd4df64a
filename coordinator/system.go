package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/bus"
	"github.com/BaSui01/agenthive/config"
	"github.com/BaSui01/agenthive/debate"
	"github.com/BaSui01/agenthive/delegation"
	"github.com/BaSui01/agenthive/internal/metrics"
	"github.com/BaSui01/agenthive/memory"
	"github.com/BaSui01/agenthive/persistence"
	"github.com/BaSui01/agenthive/types"
)

// Default agent names used by the assembled system.
const (
	UserAgent      = "user"
	ChefAgent      = "chef"
	ModeratorAgent = "moderator"
)

// defaultStances seed the worker pool's debate positions.
var defaultStances = []string{"for", "against", "nuanced"}

// Outcome is the caller-visible result of one processed request. ThreadID
// identifies the request's message thread for Trace lookups.
type Outcome struct {
	Success      bool          `json:"success"`
	Response     string        `json:"response,omitempty"`
	Err          string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	MessageCount int64         `json:"message_count"`
	ThreadID     string        `json:"thread_id,omitempty"`
}

// SystemOption configures optional collaborators.
type SystemOption func(*System)

// WithMessageStore mirrors delivered messages into a persistence store.
func WithMessageStore(store persistence.MessageStore) SystemOption {
	return func(s *System) { s.store = store }
}

// WithMemoryIndex gives the chef a recall index.
func WithMemoryIndex(index memory.Index) SystemOption {
	return func(s *System) { s.index = index }
}

// WithWorkerCount overrides the size of the worker pool.
func WithWorkerCount(n int) SystemOption {
	return func(s *System) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// System assembles the substrate: bus, moderator, chef, workers and the
// caller-side response manager. It owns the drive loop that drains mailboxes
// and fires debate deadlines.
type System struct {
	cfg    *config.Config
	logger *zap.Logger

	bus       *bus.Bus
	collector *metrics.Collector
	store     persistence.MessageStore
	index     memory.Index

	moderator *debate.Moderator
	manager   *debate.Manager
	tracker   *delegation.Tracker
	chef      *Chef
	workers   []*Worker
	responses *ResponseManager

	workerCount int

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewSystem builds and wires a complete substrate from configuration. The
// reasoner may be nil; agents then fall back to degraded direct answers.
func NewSystem(cfg *config.Config, reasoner agent.Reasoner, opts ...SystemOption) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	s := &System{
		cfg:         cfg,
		logger:      logger,
		workerCount: len(defaultStances),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	busOpts := []bus.Option{
		bus.WithLogger(logger),
		bus.WithHistoryLimit(cfg.Bus.HistoryLimit),
		bus.WithPopTimeout(cfg.Bus.PopTimeout),
		bus.WithMetrics(s.collector),
	}
	if s.store != nil {
		busOpts = append(busOpts, bus.WithStore(s.store))
	}
	if cfg.Bus.PublishRateLimit > 0 {
		busOpts = append(busOpts, bus.WithDeliveryRate(rate.Limit(cfg.Bus.PublishRateLimit), cfg.Bus.PublishBurst))
	}
	s.bus = bus.New(busOpts...)

	s.tracker = delegation.NewTracker(logger, s.collector)
	s.moderator = debate.NewModerator(ModeratorAgent, cfg.Debate, logger, s.collector)
	s.manager = debate.NewManager(s.bus, s.moderator, logger)
	s.chef = NewChef(ChefAgent, reasoner, s.manager, s.tracker, s.index, logger)
	s.responses = NewResponseManager(UserAgent, logger)

	for i := 0; i < s.workerCount; i++ {
		stance := defaultStances[i%len(defaultStances)]
		s.workers = append(s.workers, NewWorker("worker-"+strconv.Itoa(i+1), stance, reasoner, logger))
	}

	if err := s.registerAll(); err != nil {
		s.bus.Stop()
		return nil, err
	}
	return s, nil
}

func (s *System) registerAll() error {
	agents := []agent.Agent{s.responses, s.chef, s.moderator}
	for _, w := range s.workers {
		agents = append(agents, w)
	}
	workerNames := make([]string, 0, len(s.workers))
	for _, a := range agents {
		if err := s.bus.Register(a); err != nil {
			return err
		}
	}
	for _, w := range s.workers {
		workerNames = append(workerNames, w.Name())
		if err := s.bus.Subscribe(w.Name(), types.KindBroadcast); err != nil {
			return err
		}
	}
	s.chef.SetWorkers(workerNames)
	return nil
}

// Bus exposes the underlying bus for registration of additional agents.
func (s *System) Bus() *bus.Bus { return s.bus }

// Tracker exposes the delegation tracker.
func (s *System) Tracker() *delegation.Tracker { return s.tracker }

// Debates exposes the debate manager.
func (s *System) Debates() *debate.Manager { return s.manager }

// Logger exposes the system logger.
func (s *System) Logger() *zap.Logger { return s.logger }

// MetricsHandler serves the Prometheus scrape endpoint.
func (s *System) MetricsHandler() http.Handler { return promhttp.Handler() }

// Trace returns the delivery history of one request thread, oldest first.
// History is bounded, so old threads may have been evicted.
func (s *System) Trace(threadID string) []types.Delivery {
	return s.bus.HistoryByThread(threadID)
}

// Recall queries the coordinator agent's memory capability. Agents without
// the capability simply recall nothing.
func (s *System) Recall(ctx context.Context, query string, topK int) ([]string, error) {
	a, ok := s.bus.Get(ChefAgent)
	if !ok {
		return nil, types.Errorf(types.ErrUnknownAgent, "agent %s is not registered", ChefAgent)
	}
	r, ok := agent.AsRemembering(a)
	if !ok {
		return nil, nil
	}
	return r.Recall(ctx, query, topK)
}

// Start launches the drive loop: on every tick, finished deliveries are
// drained through agent handlers and expired debate deadlines fire. All
// handler execution happens on this one goroutine.
func (s *System) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.Request.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// One closing pump so accepted work is not stranded.
				s.pump(context.Background())
				return nil
			case <-ticker.C:
				s.pump(ctx)
			}
		}
	})
	s.logger.Info("system started",
		zap.Int("workers", len(s.workers)),
		zap.Duration("drain_interval", s.cfg.Request.DrainInterval),
	)
}

// pump alternates delivery flushes and drain passes until the system is
// quiescent, firing debate deadlines between passes.
func (s *System) pump(ctx context.Context) {
	for {
		flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.bus.Flush(flushCtx)
		cancel()

		processed := s.bus.Drain(ctx)
		advanced := s.moderator.CheckDeadlines(time.Now())
		if processed == 0 && len(advanced) == 0 {
			return
		}
	}
}

// ProcessRequest publishes a request on behalf of the external caller and
// blocks until a terminal message for its thread arrives or the timeout
// expires. On timeout the caller stops waiting; in-flight work is not
// retracted.
func (s *System) ProcessRequest(ctx context.Context, text string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = s.cfg.Request.DefaultTimeout
	}
	start := time.Now()
	before := s.bus.Stats().Sent

	threadID := uuid.New().String()
	done := s.responses.Expect(threadID)

	msg := types.NewMessage(UserAgent, types.KindRequest).
		To(ChefAgent).
		WithThread(threadID).
		WithPayload(map[string]any{keyText: text})
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.responses.Forget(threadID)
		return Outcome{
			Err:      err.Error(),
			Duration: time.Since(start),
			ThreadID: threadID,
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	finish := func(o Outcome) Outcome {
		o.Duration = time.Since(start)
		o.MessageCount = s.bus.Stats().Sent - before
		o.ThreadID = threadID
		return o
	}

	select {
	case reply := <-done:
		if reply.Kind == types.KindError {
			return finish(Outcome{Err: stringField(reply.Payload, "reason")})
		}
		return finish(Outcome{Success: true, Response: responseText(reply)})
	case <-timer.C:
		s.responses.Forget(threadID)
		return finish(Outcome{Err: "request timed out after " + timeout.String()})
	case <-ctx.Done():
		s.responses.Forget(threadID)
		return finish(Outcome{Err: ctx.Err().Error()})
	}
}

// responseText extracts the human-facing text of a terminal message.
func responseText(msg types.Message) string {
	if t := stringField(msg.Payload, keyText); t != "" {
		return t
	}
	if msg.Kind == types.KindDebateConclusion {
		if synth := stringField(msg.Payload, "synthesis"); synth != "" {
			return synth
		}
		if winner := stringField(msg.Payload, "winner"); winner != "" {
			return "Debate outcome: " + winner
		}
		return "Debate closed without consensus."
	}
	return ""
}

// Stop shuts the system down: the drive loop exits after a final pump, then
// the bus and store close. Safe to call once.
func (s *System) Stop() {
	if s.cancel != nil {
		s.cancel()
		_ = s.group.Wait()
	}
	s.bus.Stop()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close failed", zap.Error(err))
		}
	}
	s.logger.Info("system stopped")
	_ = s.logger.Sync()
}

// buildLogger constructs the zap logger described by the config.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
