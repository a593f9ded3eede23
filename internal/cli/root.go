// Package cli implements the stlcpilot command tree.
//
// Every command works on a session stored by the [session.Manager] held in
// [App]. Commands return errors instead of exiting; [Run] maps them onto exit
// codes and [Execute] is the only place the process terminates.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"stlcpilot/internal/config"
	"stlcpilot/internal/export"
	"stlcpilot/internal/llm"
	"stlcpilot/internal/output"
	"stlcpilot/internal/session"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

// App holds the dependencies shared by all commands.
//
// Fields left nil are built from configuration before the first command
// runs, so tests can inject any subset.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Sessions  *session.Manager
	Generator workflow.Generator
	Printer   *output.Printer

	// In is read by the interactive reviewer. Defaults to stdin.
	In io.Reader

	// Edit opens content in an editor and returns the result.
	// Defaults to running $EDITOR.
	Edit EditFunc

	store store.Store
}

// ExecuteResult is the outcome of a command invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "stlcpilot",
		Short: "Walk a project through the software testing lifecycle",
		Long: `stlcpilot guides a project through the software testing lifecycle:
requirement analysis, test planning, test case development, test environment
setup, test execution and test closure. Each stage is drafted by a language
model and advances only when you approve it. Approved content is exported
as markdown once the last stage is committed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(configPath, logLevel, cmd.Flags().Changed("log-level"))
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: discovered)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCommand(app),
		newSessionsCommand(app),
		newStatusCommand(app),
		newStagesCommand(app),
		newDraftCommand(app),
		newCommitCommand(app),
		newRejectCommand(app),
		newRunCommand(app),
		newExportCommand(app),
		newResetCommand(app),
		newDeleteCommand(app),
		newRawCommand(app),
		newConfigCommand(app),
	)
	return root
}

// setup fills every dependency the caller did not provide.
func (a *App) setup(configPath, logLevel string, levelChanged bool) error {
	if a.Config == nil {
		loader := config.NewLoader()
		if levelChanged {
			loader.Viper().Set("log_level", logLevel)
		}
		var (
			cfg *config.Config
			err error
		)
		if configPath != "" {
			cfg, err = loader.LoadFromFile(configPath)
		} else {
			cfg, err = loader.Load()
		}
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		a.Config = cfg
	} else if levelChanged {
		a.Config.LogLevel = logLevel
	}

	if a.Logger == nil {
		logger, err := newLogger(os.Stderr, a.Config.LogLevel)
		if err != nil {
			return err
		}
		a.Logger = logger
	}

	if a.Printer == nil {
		a.Printer = output.NewPrinter()
	}
	a.Printer.SetPreview(a.Config.Output.PreviewLines, a.Config.Output.PreviewWidth)

	if a.In == nil {
		a.In = os.Stdin
	}
	if a.Edit == nil {
		a.Edit = editInEditor
	}

	if a.Generator == nil {
		cfg, logger := a.Config, a.Logger
		// Built on first use so commands that never draft work without
		// provider credentials.
		a.Generator = llm.NewLazy(func() (workflow.Generator, error) {
			return llm.New(cfg, logger)
		})
	}

	if a.Sessions == nil {
		st, err := store.Open(a.Config.Store.Backend, a.Config.Store.Path, a.Logger)
		if err != nil {
			return err
		}
		a.store = st
		a.Sessions = session.NewManager(st,
			workflow.NewRunner(a.Config, a.Logger),
			a.Generator,
			session.WithTimeout(a.Config.Generator.Timeout),
			session.WithSink(export.NewDirSink(a.Config.Export.Dir)),
			session.WithLogger(a.Logger),
		)
	}
	return nil
}

// Close releases the session store opened by setup.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Run executes the command tree with args and maps the outcome onto an
// exit code. Errors are reported on the command's error stream.
func Run(ctx context.Context, app *App, args []string) ExecuteResult {
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := app.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err == nil {
		return ExecuteResult{ExitCode: ExitOK}
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExecuteResult{ExitCode: exitCode(err), Err: err}
}

// Execute runs the CLI with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	result := Run(ctx, &App{}, os.Args[1:])
	stop()
	os.Exit(result.ExitCode)
}
