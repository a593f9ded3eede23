package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/config"
	"stlcpilot/internal/export"
	"stlcpilot/internal/llm"
	"stlcpilot/internal/output"
	"stlcpilot/internal/session"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

// testApp is an App wired to a temporary file store and a scripted generator.
type testApp struct {
	*App
	gen   *llm.Mock
	store *store.FileStore
	out   *bytes.Buffer
	dir   string
}

func newTestApp(t *testing.T, responses ...string) *testApp {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "sessions")
	cfg.Export.Dir = filepath.Join(dir, "artifacts")

	st, err := store.NewFileStore(cfg.Store.Path, nil)
	require.NoError(t, err)

	if len(responses) == 0 {
		responses = []string{"generated draft"}
	}
	gen := &llm.Mock{Responses: responses}

	ids := 0
	mgr := session.NewManager(st, workflow.NewRunner(cfg, nil), gen,
		session.WithSink(export.NewDirSink(cfg.Export.Dir)),
		session.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("sess-%d", ids)
		}),
	)

	out := &bytes.Buffer{}
	return &testApp{
		App: &App{
			Config:    cfg,
			Logger:    slog.New(slog.DiscardHandler),
			Sessions:  mgr,
			Generator: gen,
			Printer:   output.NewPrinterWithWriter(out),
			In:        strings.NewReader(""),
		},
		gen:   gen,
		store: st,
		out:   out,
		dir:   dir,
	}
}

// run executes one command line against the app and returns the error.
// Printer output accumulates in a.out; cobra's own output goes to a
// separate buffer that is returned.
func (a *testApp) run(args ...string) (string, error) {
	root := NewRootCommand(a.App)
	cobraOut := &bytes.Buffer{}
	root.SetOut(cobraOut)
	root.SetErr(cobraOut)
	root.SetArgs(args)
	err := root.Execute()
	return cobraOut.String(), err
}

// mustRun fails the test when the command returns an error.
func (a *testApp) mustRun(t *testing.T, args ...string) {
	t.Helper()
	_, err := a.run(args...)
	require.NoError(t, err, "stlcpilot %s", strings.Join(args, " "))
}

// findCommand returns the subcommand named name.
func findCommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
