package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stlcpilot/internal/document"
	"stlcpilot/internal/lifecycle"
	"stlcpilot/internal/router"
	"stlcpilot/internal/stage"
)

func newInitCommand(app *App) *cobra.Command {
	var (
		requirements []string
		reqFile      string
	)

	cmd := &cobra.Command{
		Use:   "init <project-name>",
		Short: "Start a new session",
		Long: `Start a new session for a project and its requirements.
The session begins at requirement analysis.

Example:
  stlcpilot init Checkout -r "Users can pay by card" -r "Receipts are emailed"
  stlcpilot init Checkout --requirements-file requirements.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := append([]string(nil), requirements...)
			if reqFile != "" {
				data, err := os.ReadFile(reqFile)
				if err != nil {
					return fmt.Errorf("failed to read requirements: %w", err)
				}
				reqs = append(reqs, document.ParseRequirements(string(data))...)
			}

			snap, err := app.Sessions.Create(cmd.Context(), args[0], reqs)
			if err != nil {
				return err
			}
			app.Printer.Success("created session %s", snap.ID)
			app.Printer.Status(snap)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&requirements, "requirement", "r", nil, "requirement (repeatable)")
	cmd.Flags().StringVar(&reqFile, "requirements-file", "", "file with one requirement per line")
	return cmd
}

func newSessionsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := app.Sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			app.Printer.Sessions(snaps)
			return nil
		},
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a session's progress and pending draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := app.Sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.Printer.Status(snap)
			if snap.Pending != nil {
				app.Printer.Draft(*snap.Pending)
			}
			return nil
		},
	}
}

func newStagesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stages [session-id]",
		Short: "List the remaining lifecycle steps",
		Long: `List the lifecycle steps that remain for a session, or the full
lifecycle when no session is given. Nothing is run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				steps []router.LifecycleStep
				err   error
			)
			if len(args) == 0 {
				steps, err = router.GetLifecycle(stage.RequirementAnalysis)
			} else {
				steps, err = lifecycle.NewExecutor(app.Sessions, lifecycle.AutoApprover{}).GetSteps(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			app.Printer.Steps(steps)
			return nil
		},
	}
}

func newResetCommand(app *App) *cobra.Command {
	var keepProject bool

	cmd := &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Discard all progress of a session",
		Long: `Return a session to project initialization, discarding every committed
stage and any pending draft. Reset also recovers sessions whose stored state
is damaged.

With --keep-project the project name and requirements are kept and the
session restarts at requirement analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if !keepProject {
				if _, err := app.Sessions.Reset(ctx, id); err != nil {
					return err
				}
				app.Printer.Success("session %s reset", id)
				return nil
			}

			snap, err := app.Sessions.Restart(ctx, id)
			if err != nil {
				return err
			}
			app.Printer.Success("session %s restarted at %s", id, snap.Document.CurrentStage.Label())
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepProject, "keep-project", false, "keep the project name and requirements")
	return cmd
}

func newDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Sessions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Printer.Success("session %s deleted", args[0])
			return nil
		},
	}
}
