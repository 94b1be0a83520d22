// Package store keeps projects and runs in memory and owns the run
// lifecycle: validate, compile, execute on a worker goroutine, finalize.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/ir"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runlog"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runtime"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/validation"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/vars"
)

// Run is one execution of a project. Logs and Ctx stay readable after the
// run finishes. Status, Error, and FinishedAt are written by the worker
// goroutine under the store lock; observers read them through RunInfo or
// RunStatus, never off the live struct while the run is active.
type Run struct {
	ID         string
	ProjectID  string
	Status     runtime.Status
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string

	Logs *runlog.Buffer
	Ctx  *runtime.ExecutionContext
	done chan struct{}
}

// RunInfo is a point-in-time copy of a run's state, safe to hold and
// serialize while the run is still executing.
type RunInfo struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Status     runtime.Status `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Error      string         `json:"error,omitempty"`
}

// info copies the mutable fields. The caller must hold the store lock.
func (r *Run) info() RunInfo {
	return RunInfo{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
	}
}

// Wait blocks until the run reaches a terminal status.
func (r *Run) Wait() {
	<-r.done
}

// Store is a thread-safe registry of projects and runs.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*graph.Project
	runs     map[string]*Run
	cache    *validation.Cache

	// ExtraSink, when set, additionally receives every run's log entries.
	ExtraSink runlog.Sink
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*graph.Project),
		runs:     make(map[string]*Run),
		cache:    validation.NewCache(),
	}
}

// PutProject registers or replaces a project, assigning an id if absent.
func (s *Store) PutProject(p *graph.Project) *graph.Project {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()
	s.cache.Invalidate(p.Main.ID)
	return p
}

// GetProject looks up a project by id.
func (s *Store) GetProject(id string) (*graph.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// DeleteProject removes a project. Existing runs are kept.
func (s *Store) DeleteProject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return false
	}
	delete(s.projects, id)
	return true
}

// ListProjects returns all projects sorted by name.
func (s *Store) ListProjects() []*graph.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate runs the validator over every scenario of a project, using the
// per-scenario cache, then appends the project-level findings to the main
// scenario's result.
func (s *Store) Validate(projectID string) (map[string]*validation.Result, error) {
	p, ok := s.GetProject(projectID)
	if !ok {
		return nil, fmt.Errorf("project %q not found", projectID)
	}
	v := validation.New(p)
	out := make(map[string]*validation.Result)
	for _, sc := range p.AllScenarios() {
		out[sc.ID] = s.cache.Validate(v, sc)
	}
	// Cached results are shared between calls; project-level findings go
	// on a copy so they are not appended to the cache entry repeatedly.
	main := validation.NewResult()
	main.Merge(out[p.Main.ID])
	v.CheckProject(main)
	out[p.Main.ID] = main
	return out, nil
}

// StartRun validates, compiles, and launches a project's main scenario on
// its own goroutine. It returns once the run is registered, not when it
// finishes.
func (s *Store) StartRun(projectID string) (*Run, error) {
	p, ok := s.GetProject(projectID)
	if !ok {
		return nil, fmt.Errorf("project %q not found", projectID)
	}

	results, err := s.Validate(projectID)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if !res.Valid() {
			return nil, fmt.Errorf("project %q failed validation: %s", p.Name, res.Errors[0])
		}
	}

	globals := vars.New()
	prog, err := ir.Build(p, &p.Main, results[p.Main.ID].Reachable, globals)
	if err != nil {
		return nil, fmt.Errorf("compile project %q: %w", p.Name, err)
	}

	run := &Run{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    runtime.StatusRunning,
		StartedAt: time.Now(),
		Logs:      runlog.NewBuffer(0),
		Ctx:       runtime.NewExecutionContext(globals),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	var sink runlog.Sink = run.Logs
	if s.ExtraSink != nil {
		sink = runlog.MultiSink{run.Logs, s.ExtraSink}
	}
	exec := runtime.NewExecutor(prog, p, &p.Main, run.Ctx, sink)

	go func() {
		err := exec.Run()
		status := runtime.StatusSucceeded
		msg := ""
		switch {
		case err == nil:
		case types.IsStopped(err):
			status = runtime.StatusCancelled
			msg = err.Error()
		default:
			status = runtime.StatusFailed
			msg = err.Error()
		}
		s.mu.Lock()
		run.Status = status
		run.Error = msg
		run.FinishedAt = time.Now()
		s.mu.Unlock()
		close(run.done)
	}()

	return run, nil
}

// GetRun looks up a run by id. The returned struct is live; callers
// wanting its status should use RunInfo or RunStatus instead.
func (s *Store) GetRun(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}

// RunInfo returns a copy of a run's current state taken under the lock.
func (s *Store) RunInfo(id string) (RunInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return RunInfo{}, false
	}
	return r.info(), true
}

// RunStatus reads a run's status under the lock.
func (s *Store) RunStatus(id string) (runtime.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// ListRuns returns run state copies, newest first, optionally filtered by
// project.
func (s *Store) ListRuns(projectID string) []RunInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunInfo, 0, len(s.runs))
	for _, r := range s.runs {
		if projectID == "" || r.ProjectID == projectID {
			out = append(out, r.info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// CancelRun requests cooperative cancellation of an active run.
func (s *Store) CancelRun(id string) bool {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	r.Ctx.Stop.Stop()
	return true
}
