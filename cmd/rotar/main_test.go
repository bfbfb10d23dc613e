package main

import (
	"flag"
	"fmt"
	"testing"

	"github.com/google/go-cmdtest"

	"github.com/t7a/rotar"
	"github.com/t7a/rotar/transport"
)

var update = flag.Bool("update", false, "update test files with results")

func TestCLI(t *testing.T) {
	ts, err := cmdtest.Read("testdata")
	if err != nil {
		t.Fatal(err)
	}
	ts.Commands["rotar"] = cmdtest.InProcessProgram("rotar", run)
	ts.Run(t, *update)
}

func TestCheckMirror(t *testing.T) {
	m := &transport.Mirror{User: "u", Host: "h", KeyFile: "k", RemoteDir: "d"}
	if err := checkMirror(m); err != nil {
		t.Fatalf("complete mirror rejected: %v", err)
	}
	m.Host = ""
	err := checkMirror(m)
	if err == nil {
		t.Fatal("incomplete mirror accepted")
	}
}

func TestFailCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&rotar.ConfigError{Field: "count", Value: 0, Want: "x"}, 3},
		{&rotar.InconsistentTreeError{Dir: ".", Name: "data", Orphan: rotar.Path{1, 1}}, 4},
		{&rotar.ArchiveError{Op: "create", Archive: "a", Err: fmt.Errorf("x")}, 5},
		{&rotar.TransportError{Op: "push", Err: fmt.Errorf("x")}, 6},
		{fmt.Errorf("anything else"), 1},
	}
	for _, c := range cases {
		if got := fail(c.err); got != c.want {
			t.Fatalf("fail(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
