// Package delegation tracks decomposed units of work: projects, their
// dependency-gated subtasks, and progress. The tracker is pure bookkeeping;
// assigning work to agents and collecting results over the bus is the
// coordinator's job.
package delegation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/internal/metrics"
	"github.com/BaSui01/agenthive/types"
)

// ProjectStatus is the project lifecycle state.
type ProjectStatus string

const (
	ProjectCreated   ProjectStatus = "created"
	ProjectPlanned   ProjectStatus = "planned"
	ProjectExecuting ProjectStatus = "executing"
	ProjectCompleted ProjectStatus = "completed"
	ProjectFailed    ProjectStatus = "failed"
)

// SubtaskStatus is the per-subtask state.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskAssigned  SubtaskStatus = "assigned"
	SubtaskCompleted SubtaskStatus = "completed"
	SubtaskFailed    SubtaskStatus = "failed"
)

// Subtask is one node of a project's dependency graph.
type Subtask struct {
	ID           string        `json:"id"`
	Description  string        `json:"description"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Assignee     string        `json:"assignee,omitempty"`
	Status       SubtaskStatus `json:"status"`
	Result       string        `json:"result,omitempty"`
}

// Project is a decomposed unit of work. Subtasks keep plan order; plan order
// is the deterministic tie-break for readiness.
type Project struct {
	ID        string        `json:"id"`
	Task      string        `json:"task"`
	Requester string        `json:"requester"`
	Status    ProjectStatus `json:"status"`
	Subtasks  []Subtask     `json:"subtasks"`
	Progress  float64       `json:"progress"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Tracker owns project records. All mutation goes through its lock.
type Tracker struct {
	mu       sync.Mutex
	projects map[string]*Project
	order    []string

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger, collector *metrics.Collector) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		projects: make(map[string]*Project),
		metrics:  collector,
		logger:   logger.With(zap.String("component", "delegation")),
	}
}

// CreateProject registers a new project in the created state and returns a
// snapshot of it.
func (t *Tracker) CreateProject(task, requester string) Project {
	p := &Project{
		ID:        uuid.New().String(),
		Task:      task,
		Requester: requester,
		Status:    ProjectCreated,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	t.mu.Lock()
	t.projects[p.ID] = p
	t.order = append(t.order, p.ID)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordProjectTransition(string(ProjectCreated))
	}
	t.logger.Info("project created",
		zap.String("project_id", p.ID),
		zap.String("requester", requester),
	)
	return *p
}

// ApplyPlan installs the subtask graph and moves the project to planned.
// A dependency on an unknown subtask id or a cycle in the graph fails with
// INVALID_PLAN and marks the project failed; planning errors are fatal to
// the project, not recoverable.
func (t *Tracker) ApplyPlan(projectID string, subtasks []Subtask) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.projects[projectID]
	if !ok {
		return types.Errorf(types.ErrUnknownProject, "no project %s", projectID)
	}
	if p.Status != ProjectCreated {
		return types.Errorf(types.ErrInvalidPlan,
			"project %s is %s, expected created", projectID, p.Status)
	}
	if len(subtasks) == 0 {
		p.Status = ProjectFailed
		p.UpdatedAt = time.Now()
		return types.Errorf(types.ErrInvalidPlan, "plan for project %s has no subtasks", projectID)
	}

	if err := validatePlan(subtasks); err != nil {
		p.Status = ProjectFailed
		p.UpdatedAt = time.Now()
		t.logger.Warn("plan rejected",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		if t.metrics != nil {
			t.metrics.RecordProjectTransition(string(ProjectFailed))
		}
		return err
	}

	p.Subtasks = make([]Subtask, len(subtasks))
	copy(p.Subtasks, subtasks)
	for i := range p.Subtasks {
		p.Subtasks[i].Status = SubtaskPending
		p.Subtasks[i].Assignee = ""
		p.Subtasks[i].Result = ""
	}
	p.Status = ProjectPlanned
	p.Progress = 0
	p.UpdatedAt = time.Now()

	if t.metrics != nil {
		t.metrics.RecordProjectTransition(string(ProjectPlanned))
	}
	t.logger.Info("plan applied",
		zap.String("project_id", projectID),
		zap.Int("subtasks", len(subtasks)),
	)
	return nil
}

// validatePlan rejects duplicate ids, dangling dependencies and cycles.
func validatePlan(subtasks []Subtask) error {
	byID := make(map[string][]string, len(subtasks))
	for _, st := range subtasks {
		if st.ID == "" {
			return types.NewError(types.ErrInvalidPlan, "subtask without an id")
		}
		if _, dup := byID[st.ID]; dup {
			return types.Errorf(types.ErrInvalidPlan, "duplicate subtask id %s", st.ID)
		}
		byID[st.ID] = st.Dependencies
	}
	for _, st := range subtasks {
		for _, dep := range st.Dependencies {
			if _, known := byID[dep]; !known {
				return types.Errorf(types.ErrInvalidPlan,
					"subtask %s depends on unknown id %s", st.ID, dep)
			}
			if dep == st.ID {
				return types.Errorf(types.ErrInvalidPlan, "subtask %s depends on itself", st.ID)
			}
		}
	}

	visited := make(map[string]bool, len(subtasks))
	recStack := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		if !visited[st.ID] {
			if cycle := hasCycleDFS(st.ID, byID, visited, recStack); cycle != "" {
				return types.Errorf(types.ErrInvalidPlan,
					"dependency cycle involving subtask %s", cycle)
			}
		}
	}
	return nil
}

// hasCycleDFS walks dependency edges depth-first and reports the first node
// found on a back edge, or "" when the subgraph is acyclic.
func hasCycleDFS(id string, deps map[string][]string, visited, recStack map[string]bool) string {
	visited[id] = true
	recStack[id] = true
	for _, dep := range deps[id] {
		if !visited[dep] {
			if cycle := hasCycleDFS(dep, deps, visited, recStack); cycle != "" {
				return cycle
			}
		} else if recStack[dep] {
			return dep
		}
	}
	recStack[id] = false
	return ""
}

// NextReadyTask returns the first subtask in plan order whose dependencies
// are all completed and which has not been assigned, marking it assigned to
// the given assignee. The second return is false when nothing is ready,
// which signals either completion or a blocked plan.
func (t *Tracker) NextReadyTask(projectID, assignee string) (Subtask, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.projects[projectID]
	if !ok {
		return Subtask{}, false, types.Errorf(types.ErrUnknownProject, "no project %s", projectID)
	}
	if p.Status != ProjectPlanned && p.Status != ProjectExecuting {
		return Subtask{}, false, nil
	}

	done := make(map[string]bool, len(p.Subtasks))
	for _, st := range p.Subtasks {
		if st.Status == SubtaskCompleted {
			done[st.ID] = true
		}
	}

next:
	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		if st.Status != SubtaskPending {
			continue
		}
		for _, dep := range st.Dependencies {
			if !done[dep] {
				continue next
			}
		}
		st.Status = SubtaskAssigned
		st.Assignee = assignee
		if p.Status == ProjectPlanned {
			p.Status = ProjectExecuting
			if t.metrics != nil {
				t.metrics.RecordProjectTransition(string(ProjectExecuting))
			}
		}
		p.UpdatedAt = time.Now()
		return *st, true, nil
	}
	return Subtask{}, false, nil
}

// MarkSubtaskResult records a subtask outcome, recomputes progress and
// reports whether the project is now fully completed. Progress only counts
// completed subtasks, so it never decreases.
func (t *Tracker) MarkSubtaskResult(projectID, subtaskID string, success bool, result string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.projects[projectID]
	if !ok {
		return false, types.Errorf(types.ErrUnknownProject, "no project %s", projectID)
	}

	var st *Subtask
	for i := range p.Subtasks {
		if p.Subtasks[i].ID == subtaskID {
			st = &p.Subtasks[i]
			break
		}
	}
	if st == nil {
		return false, types.Errorf(types.ErrUnknownSubtask,
			"project %s has no subtask %s", projectID, subtaskID)
	}

	if success {
		st.Status = SubtaskCompleted
	} else {
		st.Status = SubtaskFailed
	}
	st.Result = result
	if t.metrics != nil {
		t.metrics.RecordSubtaskCompleted(success)
	}

	completed := 0
	for _, s := range p.Subtasks {
		if s.Status == SubtaskCompleted {
			completed++
		}
	}
	p.Progress = float64(completed) / float64(len(p.Subtasks))
	p.UpdatedAt = time.Now()

	if completed == len(p.Subtasks) {
		p.Status = ProjectCompleted
		if t.metrics != nil {
			t.metrics.RecordProjectTransition(string(ProjectCompleted))
		}
		t.logger.Info("project completed", zap.String("project_id", projectID))
		return true, nil
	}
	return false, nil
}

// MarkProjectFailed moves a project to failed regardless of subtask state.
func (t *Tracker) MarkProjectFailed(projectID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.projects[projectID]
	if !ok {
		return types.Errorf(types.ErrUnknownProject, "no project %s", projectID)
	}
	p.Status = ProjectFailed
	p.UpdatedAt = time.Now()
	if t.metrics != nil {
		t.metrics.RecordProjectTransition(string(ProjectFailed))
	}
	return nil
}

// Get returns a snapshot of a project.
func (t *Tracker) Get(projectID string) (Project, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.projects[projectID]
	if !ok {
		return Project{}, false
	}
	return snapshot(p), true
}

// Projects returns snapshots of every project in creation order.
func (t *Tracker) Projects() []Project {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Project, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, snapshot(t.projects[id]))
	}
	return out
}

func snapshot(p *Project) Project {
	cp := *p
	cp.Subtasks = make([]Subtask, len(p.Subtasks))
	copy(cp.Subtasks, p.Subtasks)
	return cp
}
