package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/debate"
	"github.com/BaSui01/agenthive/delegation"
	"github.com/BaSui01/agenthive/memory"
	"github.com/BaSui01/agenthive/types"
)

// Payload keys used on the coordinator's message surface.
const (
	keyText      = "text"
	keyMode      = "mode"
	keyProjectID = "project_id"
	keySubtaskID = "subtask_id"
	keyTask      = "task"
	keySuccess   = "success"
	keyResult    = "result"
	keyProgress  = "progress"
	keyStatus    = "status"
)

const reasoningTimeout = 20 * time.Second

// requestClass is the chef's triage of an inbound request.
type requestClass int

const (
	classSimple requestClass = iota
	classDebate
	classProject
)

// Chef is the lead agent: it triages requests, answers simple ones directly,
// escalates contested ones to a debate, and decomposes project-shaped ones
// into a dependency-gated subtask plan executed by workers.
type Chef struct {
	*agent.Base

	reasoner agent.Reasoner
	debates  *debate.Manager
	tracker  *delegation.Tracker
	index    memory.Index

	mu       sync.Mutex
	workers  []string
	nextWork int
	owners   map[string]projectOwner

	logger *zap.Logger
}

// projectOwner remembers where a project's final response must go.
type projectOwner struct {
	requester string
	thread    string
	results   []string
}

// NewChef creates the lead agent. The memory index is optional; a nil index
// only disables prompt enrichment.
func NewChef(name string, reasoner agent.Reasoner, debates *debate.Manager, tracker *delegation.Tracker, index memory.Index, logger *zap.Logger) *Chef {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chef{
		Base:     agent.New(name, "lead", logger, types.CapPlan, types.CapMemory),
		reasoner: reasoner,
		debates:  debates,
		tracker:  tracker,
		index:    index,
		owners:   make(map[string]projectOwner),
		logger:   logger.With(zap.String("component", "chef"), zap.String("agent", name)),
	}
	c.Handle(types.KindRequest, c.handleRequest)
	c.Handle(types.KindTaskResult, c.handleTaskResult)
	c.Handle(types.KindProgressRequest, c.handleProgressRequest)
	return c
}

// SetWorkers installs the pool of worker names used for subtask assignment.
func (c *Chef) SetWorkers(names []string) {
	c.mu.Lock()
	c.workers = append([]string(nil), names...)
	c.nextWork = 0
	c.mu.Unlock()
}

// Remember stores content in the chef's memory index.
func (c *Chef) Remember(ctx context.Context, content string, metadata map[string]string) error {
	if c.index == nil {
		return nil
	}
	_, err := c.index.Store(ctx, content, metadata)
	return err
}

// Recall returns up to topK remembered snippets relevant to the query.
func (c *Chef) Recall(ctx context.Context, query string, topK int) ([]string, error) {
	if c.index == nil {
		return nil, nil
	}
	results, err := c.index.Search(ctx, query, nil, topK)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Entry.Content)
	}
	return out, nil
}

// classify triages a request by shape. Contested or open-ended questions go
// to debate, decomposable work becomes a project, everything else is
// answered directly.
func classify(text string) requestClass {
	lower := strings.ToLower(text)
	for _, kw := range []string{"debate", "should we", "compare", "trade-off", "tradeoff", "pros and cons", "decide between", "which is better"} {
		if strings.Contains(lower, kw) {
			return classDebate
		}
	}
	for _, kw := range []string{"project", "plan ", "break down", "step by step", "organize", "roadmap"} {
		if strings.Contains(lower, kw) {
			return classProject
		}
	}
	return classSimple
}

func (c *Chef) handleRequest(msg types.Message) (*types.Message, error) {
	text := payloadText(msg)
	c.SetState(types.StateThinking)
	defer c.SetState(types.StateIdle)

	switch classify(text) {
	case classDebate:
		if reply := c.startDebate(msg, text); reply != nil {
			return reply, nil
		}
		// Conclusion arrives on the request thread from the moderator.
		return nil, nil
	case classProject:
		return c.startProject(msg, text), nil
	default:
		return c.directResponse(msg, text), nil
	}
}

// directResponse answers without involving other agents. A reasoning failure
// degrades to a canned answer rather than propagating.
func (c *Chef) directResponse(msg types.Message, text string) *types.Message {
	ctx, cancel := context.WithTimeout(context.Background(), reasoningTimeout)
	defer cancel()

	prompt := agent.Prompt{Input: text}
	if recalled, err := c.Recall(ctx, text, 3); err == nil && len(recalled) > 0 {
		prompt.Context = map[string]any{"recalled": recalled}
	}

	mode := "direct"
	answer := ""
	if c.reasoner != nil {
		res, err := c.reasoner.Generate(ctx, prompt)
		if err == nil {
			answer = res.Text
		} else {
			// Untyped errors are wrapped as retryable generation failures;
			// a typed error keeps whatever retryability its producer set.
			genErr := err
			if types.GetErrorCode(err) == "" {
				genErr = agent.GenerationError(err)
			}
			if types.IsRetryable(genErr) {
				c.logger.Warn("reasoning failed, using fallback",
					zap.String("thread_id", msg.ThreadID),
					zap.Error(genErr),
				)
			} else {
				c.logger.Error("reasoning rejected request, using fallback",
					zap.String("thread_id", msg.ThreadID),
					zap.Error(genErr),
				)
			}
		}
	}
	if answer == "" {
		mode = "fallback"
		answer = "I could not reach the reasoning backend, but I received your request: " + text
	}

	_ = c.Remember(ctx, text+" => "+answer, map[string]string{"kind": "exchange"})

	reply := msg.Reply(c.Name(), types.KindResponse).
		WithPayload(map[string]any{keyText: answer, keyMode: mode})
	return &reply
}

// startDebate escalates to the debate engine. Returns a non-nil direct reply
// only when no debate could be started and the chef must answer itself.
func (c *Chef) startDebate(msg types.Message, text string) *types.Message {
	if c.debates == nil {
		return c.directResponse(msg, text)
	}
	_, err := c.debates.StartDebate(debate.StartOptions{
		Topic:       text,
		Question:    text,
		Requester:   msg.Sender,
		ReplyThread: msg.ThreadID,
	})
	if err != nil {
		c.logger.Warn("debate not started, answering directly",
			zap.String("thread_id", msg.ThreadID),
			zap.Error(err),
		)
		return c.directResponse(msg, text)
	}
	return nil
}

// startProject decomposes the request into a three-phase plan and assigns
// every ready subtask. The final response is produced by handleTaskResult
// once all subtasks complete.
func (c *Chef) startProject(msg types.Message, text string) *types.Message {
	if c.tracker == nil || len(c.workerPool()) == 0 {
		return c.directResponse(msg, text)
	}

	p := c.tracker.CreateProject(text, msg.Sender)
	plan := []delegation.Subtask{
		{ID: "analyze", Description: "Analyze the request: " + text},
		{ID: "execute", Description: "Carry out the work for: " + text, Dependencies: []string{"analyze"}},
		{ID: "review", Description: "Review and summarize the outcome", Dependencies: []string{"execute"}},
	}
	if err := c.tracker.ApplyPlan(p.ID, plan); err != nil {
		c.logger.Error("plan rejected",
			zap.String("project_id", p.ID),
			zap.Error(err),
		)
		reply := msg.Reply(c.Name(), types.KindError).
			WithPayload(map[string]any{
				"code":   string(types.GetErrorCode(err)),
				"reason": err.Error(),
			})
		return &reply
	}

	c.mu.Lock()
	c.owners[p.ID] = projectOwner{requester: msg.Sender, thread: msg.ThreadID}
	c.mu.Unlock()

	c.assignReady(p.ID)
	return nil
}

// assignReady hands out every currently-ready subtask round-robin over the
// worker pool.
func (c *Chef) assignReady(projectID string) {
	for {
		worker := c.nextWorker()
		if worker == "" {
			return
		}
		st, ok, err := c.tracker.NextReadyTask(projectID, worker)
		if err != nil || !ok {
			return
		}
		c.Send(types.NewMessage(c.Name(), types.KindTaskAssignment).
			To(worker).
			WithThread(projectID).
			WithPriority(7).
			WithPayload(map[string]any{
				keyProjectID: projectID,
				keySubtaskID: st.ID,
				keyTask:      st.Description,
			}))
		c.logger.Debug("subtask assigned",
			zap.String("project_id", projectID),
			zap.String("subtask_id", st.ID),
			zap.String("worker", worker),
		)
	}
}

func (c *Chef) handleTaskResult(msg types.Message) (*types.Message, error) {
	projectID := stringField(msg.Payload, keyProjectID)
	subtaskID := stringField(msg.Payload, keySubtaskID)
	success, _ := msg.Payload[keySuccess].(bool)
	result := stringField(msg.Payload, keyResult)

	done, err := c.tracker.MarkSubtaskResult(projectID, subtaskID, success, result)
	if err != nil {
		c.logger.Warn("task result dropped",
			zap.String("project_id", projectID),
			zap.String("subtask_id", subtaskID),
			zap.Error(err),
		)
		return nil, err
	}

	c.mu.Lock()
	owner, tracked := c.owners[projectID]
	if tracked && result != "" {
		owner.results = append(owner.results, result)
		c.owners[projectID] = owner
	}
	c.mu.Unlock()

	if !success {
		_ = c.tracker.MarkProjectFailed(projectID)
		if tracked {
			c.finishProject(projectID, owner, false)
		}
		return nil, nil
	}
	if done {
		if tracked {
			c.finishProject(projectID, owner, true)
		}
		return nil, nil
	}
	c.assignReady(projectID)
	return nil, nil
}

// finishProject sends the aggregated project response to the requester.
func (c *Chef) finishProject(projectID string, owner projectOwner, success bool) {
	c.mu.Lock()
	delete(c.owners, projectID)
	c.mu.Unlock()

	p, _ := c.tracker.Get(projectID)
	kind := types.KindResponse
	text := "Project completed: " + strings.Join(owner.results, " | ")
	if !success {
		kind = types.KindError
		text = "Project failed during execution."
	}
	c.Send(types.NewMessage(c.Name(), kind).
		To(owner.requester).
		WithThread(owner.thread).
		WithPayload(map[string]any{
			keyText:      text,
			keyMode:      "project",
			keyProjectID: projectID,
			keyProgress:  p.Progress,
		}))
	c.logger.Info("project finished",
		zap.String("project_id", projectID),
		zap.Bool("success", success),
	)
}

func (c *Chef) handleProgressRequest(msg types.Message) (*types.Message, error) {
	projectID := stringField(msg.Payload, keyProjectID)
	p, ok := c.tracker.Get(projectID)
	if !ok {
		return nil, types.Errorf(types.ErrUnknownProject, "no project %s", projectID)
	}
	reply := msg.Reply(c.Name(), types.KindProgressReport).
		WithPayload(map[string]any{
			keyProjectID: projectID,
			keyProgress:  p.Progress,
			keyStatus:    string(p.Status),
		})
	return &reply, nil
}

func (c *Chef) workerPool() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers
}

func (c *Chef) nextWorker() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.workers) == 0 {
		return ""
	}
	w := c.workers[c.nextWork%len(c.workers)]
	c.nextWork++
	return w
}

func payloadText(msg types.Message) string {
	if t := stringField(msg.Payload, keyText); t != "" {
		return t
	}
	return ""
}

func stringField(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
