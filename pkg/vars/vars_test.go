package vars

import (
	"testing"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

func TestStoreBasics(t *testing.T) {
	s := New()
	s.Set("x", types.NewNumber(1), ScopeScenario)
	s.Set("name", types.NewString("a"), ScopeGlobal)

	if v, ok := s.Get("x"); !ok || v.Number() != 1 {
		t.Errorf("Get(x) = %v, %v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) should report absence")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestStoreMergeAndClone(t *testing.T) {
	a := New()
	a.Set("x", types.NewNumber(1), ScopeScenario)
	a.Set("y", types.NewNumber(2), ScopeScenario)

	b := New()
	b.Set("y", types.NewNumber(20), ScopeScenario)
	b.Set("z", types.NewNumber(30), ScopeScenario)

	c := a.Clone()
	c.Merge(b)

	if v, _ := c.Get("y"); v.Number() != 20 {
		t.Errorf("merge should overlay: y = %v", v)
	}
	if v, _ := a.Get("y"); v.Number() != 2 {
		t.Errorf("clone must not alias the original: y = %v", v)
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCombinedShadowing(t *testing.T) {
	global := New()
	global.Set("x", types.NewNumber(1), ScopeGlobal)
	global.Set("g", types.NewString("global"), ScopeGlobal)

	local := New()
	local.Set("x", types.NewNumber(100), ScopeScenario)

	c := Combined{Global: global, Local: local}

	v, err := c.Resolve("x")
	if err != nil || v.Number() != 100 {
		t.Errorf("local should shadow global: %v, %v", v, err)
	}
	v, err = c.Resolve("g")
	if err != nil || v.Str() != "global" {
		t.Errorf("global fallback: %v, %v", v, err)
	}
	if _, err := c.Resolve("nope"); types.KindOf(err) != types.ErrUndefinedVariable {
		t.Errorf("missing name should be UndefinedVariable, got %v", err)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := New()
	s.Set("x", types.NewNumber(1), ScopeScenario)

	snap := s.Snapshot()
	s.Set("x", types.NewNumber(2), ScopeScenario)

	if snap["x"].Number() != 1 {
		t.Errorf("snapshot should not observe later writes: %v", snap["x"])
	}
}
