package rotar

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"
)

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

// touch creates an empty file named fn in dir.
func touch(t *testing.T, dir, fn string) {
	t.Helper()
	err := ioutil.WriteFile(filepath.Join(dir, fn), nil, 0644)
	tassert(t, err == nil, "%v", err)
}

// mkTree builds an in-memory tree from path literals.
func mkTree(name string, paths ...Path) *Tree {
	tree := NewTree(name)
	for _, p := range paths {
		tree.Add(p)
	}
	return tree
}

// pathsEqual compares two path slices order-sensitively.
func pathsEqual(a, b []Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func pathsString(paths []Path) (out string) {
	for _, p := range paths {
		out += fmt.Sprintf("%s ", p)
	}
	return
}

func TestConfigCheck(t *testing.T) {
	good := &Config{Name: "data", Levels: 3, Count: 10}
	tassert(t, good.Check() == nil, "valid config rejected")

	bad := []*Config{
		{Name: "", Levels: 3, Count: 10},
		{Name: "a/b", Levels: 3, Count: 10},
		{Name: "data", Levels: 3, Count: 0},
		{Name: "data", Levels: 3, Count: 100},
		{Name: "data", Levels: -1, Count: 10},
	}
	for i, cfg := range bad {
		err := cfg.Check()
		tassert(t, err != nil, "case %d: bad config accepted: %+v", i, cfg)
		_, ok := err.(*ConfigError)
		tassert(t, ok, "case %d: want ConfigError, got %T", i, err)
	}

	zero := &Config{Name: "data", Levels: 0, Count: 2}
	tassert(t, zero.Check() == nil, "levels=0 must be accepted")
}
