package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runtime"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/validation"
)

func demoProject() *graph.Project {
	return &graph.Project{
		Name: "demo",
		Main: graph.Scenario{
			ID: "main", Name: "main",
			Nodes: []graph.Node{
				{ID: "n1", Activity: graph.Activity{Kind: graph.KindStart}},
				{ID: "n2", Activity: graph.Activity{Kind: graph.KindLog, Message: "hello"}},
				{ID: "n3", Activity: graph.Activity{Kind: graph.KindEnd}},
			},
			Connections: []graph.Connection{
				{ID: "c1", From: "n1", To: "n2", Branch: graph.BranchDefault},
				{ID: "c2", From: "n2", To: "n3", Branch: graph.BranchDefault},
			},
		},
	}
}

func TestProjectCRUD(t *testing.T) {
	s := NewStore()
	p := s.PutProject(demoProject())
	require.NotEmpty(t, p.ID)

	got, ok := s.GetProject(p.ID)
	require.True(t, ok)
	assert.Equal(t, "demo", got.Name)

	other := demoProject()
	other.Name = "another"
	s.PutProject(other)
	list := s.ListProjects()
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Name, "sorted by name")

	assert.True(t, s.DeleteProject(p.ID))
	assert.False(t, s.DeleteProject(p.ID))
}

func TestStartRunCompletes(t *testing.T) {
	s := NewStore()
	p := s.PutProject(demoProject())

	run, err := s.StartRun(p.ID)
	require.NoError(t, err)
	run.Wait()

	status, ok := s.RunStatus(run.ID)
	require.True(t, ok)
	assert.Equal(t, runtime.StatusSucceeded, status)

	entries := run.Logs.Entries()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "__EXECUTION_COMPLETE__")
}

func TestRunInfoIsSerializableWhileRunning(t *testing.T) {
	s := NewStore()
	p := demoProject()
	p.Main.Nodes[1].Activity = graph.Activity{Kind: graph.KindDelay, DelayMs: 50}
	s.PutProject(p)

	run, err := s.StartRun(p.ID)
	require.NoError(t, err)

	// Marshal copies in a tight loop while the worker goroutine finishes
	// the run; the race detector would flag any read off the live struct.
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, ok := s.RunInfo(run.ID)
		require.True(t, ok)
		_, err := json.Marshal(info)
		require.NoError(t, err)
		if info.Status != runtime.StatusRunning {
			assert.Equal(t, runtime.StatusSucceeded, info.Status)
			assert.False(t, info.FinishedAt.IsZero())
			return
		}
		require.True(t, time.Now().Before(deadline), "run did not finish")
	}
}

func TestValidateIncludesProjectFindings(t *testing.T) {
	s := NewStore()
	p := demoProject()
	p.Main.Nodes[1].Activity = graph.Activity{Kind: graph.KindCallScenario, ScenarioID: "main"}
	s.PutProject(p)

	// Run twice: the second call hits the validation cache, and the
	// project-level warnings must not accumulate on the cached result.
	for i := 0; i < 2; i++ {
		results, err := s.Validate(p.ID)
		require.NoError(t, err)
		recursion := 0
		for _, w := range results["main"].Warnings {
			if w.Code == validation.CodeRecursiveCall {
				recursion++
			}
		}
		assert.Equal(t, 1, recursion, "call %d", i+1)
	}
}

func TestStartRunRejectsInvalidProject(t *testing.T) {
	s := NewStore()
	p := demoProject()
	p.Main.Nodes = p.Main.Nodes[:1] // drop the End node
	p.Main.Connections = nil
	s.PutProject(p)

	_, err := s.StartRun(p.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestCancelRun(t *testing.T) {
	s := NewStore()
	p := demoProject()
	p.Main.Nodes[1].Activity = graph.Activity{Kind: graph.KindDelay, DelayMs: 10000}
	s.PutProject(p)

	run, err := s.StartRun(p.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.True(t, s.CancelRun(run.ID))

	done := make(chan struct{})
	go func() { run.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not cancel promptly")
	}

	status, _ := s.RunStatus(run.ID)
	assert.Equal(t, runtime.StatusCancelled, status)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := NewStore()
	p := s.PutProject(demoProject())

	first, err := s.StartRun(p.ID)
	require.NoError(t, err)
	first.Wait()
	time.Sleep(5 * time.Millisecond)
	second, err := s.StartRun(p.ID)
	require.NoError(t, err)
	second.Wait()

	runs := s.ListRuns(p.ID)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	assert.Empty(t, s.ListRuns("other-project"))
}
