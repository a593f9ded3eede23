package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stlcpilot/internal/export"
	"stlcpilot/internal/session"
	"stlcpilot/internal/stage"
)

func newDraftCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <session-id>",
		Short: "Generate a draft for the current stage",
		Long: `Generate a draft for the session's current stage. The draft is kept
until it is committed, rejected or replaced by another draft.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.Sessions.Draft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.Printer.Draft(d)
			return nil
		},
	}
}

func newCommitCommand(app *App) *cobra.Command {
	var (
		file    string
		content string
		accept  bool
	)

	cmd := &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Approve content for the current stage and advance",
		Long: `Commit content for the session's current stage and advance to the next one.
Exactly one source is required:
  --accept   the pending draft (or the requirement list at requirement analysis)
  --file     content read from a file
  --content  content given inline

Committing test closure completes the session and exports its artifacts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			sources := 0
			for _, set := range []bool{file != "", cmd.Flags().Changed("content"), accept} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("exactly one of --accept, --file or --content is required")
			}

			body := content
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read content: %w", err)
				}
				body = string(data)
			case accept:
				snap, err := app.Sessions.Get(ctx, id)
				if err != nil {
					return err
				}
				cur := snap.Document.CurrentStage
				switch {
				case snap.Pending != nil && snap.Pending.Stage == cur:
					body = snap.Pending.Content
				case cur == stage.RequirementAnalysis:
					body = snap.Document.RequirementList()
				default:
					return fmt.Errorf("no pending draft to accept at %s", cur.Label())
				}
			}

			res, err := app.Sessions.Commit(ctx, id, body)
			if err != nil {
				return err
			}
			printCommit(app, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file")
	cmd.Flags().StringVar(&content, "content", "", "inline content")
	cmd.Flags().BoolVar(&accept, "accept", false, "commit the pending draft")
	return cmd
}

func printCommit(app *App, res session.CommitResult) {
	snap := res.Snapshot
	if len(snap.History) > 0 {
		last := snap.History[len(snap.History)-1]
		app.Printer.Success("committed %s", last.From.Label())
	}
	if res.Completed() {
		app.Printer.Success("session %s complete", snap.ID)
		app.Printer.Artifacts(res.Paths)
		return
	}
	app.Printer.Info("next: %s", snap.Document.CurrentStage.Label())
}

func newRejectCommand(app *App) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "reject <session-id>",
		Short: "Discard the pending draft",
		Long: `Discard the pending draft of the current stage. The stage does not change;
run draft again to get a new one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.Sessions.Reject(cmd.Context(), args[0], feedback)
			if err != nil {
				return err
			}
			app.Printer.Warning("discarded draft for %s", d.Stage.Label())
			if d.Feedback != "" {
				app.Printer.Info("feedback: %s", d.Feedback)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedback, "feedback", "", "reason for rejecting the draft")
	return cmd
}

func newExportCommand(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the session's artifacts as markdown",
		Long: `Write every committed stage of a session as a markdown artifact under
<dir>/<session-id>/. Unfinished sessions export what has been committed so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = app.Config.Export.Dir
			}
			_, paths, err := app.Sessions.Export(cmd.Context(), args[0], export.NewDirSink(dir))
			if err != nil {
				return err
			}
			app.Printer.Artifacts(paths)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default from config)")
	return cmd
}
