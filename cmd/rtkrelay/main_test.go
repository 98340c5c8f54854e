package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("server error: no solution", 1))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitCoder.ExitCode())
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := []string{"serve", "send", "stats", "list", "inspect", "version"}
	for _, name := range want {
		if app.Command(name) == nil {
			t.Errorf("missing command %q", name)
		}
	}
	if len(app.Commands) != len(want) {
		t.Errorf("got %d commands, want %d", len(app.Commands), len(want))
	}
}
