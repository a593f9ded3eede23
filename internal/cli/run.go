package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"stlcpilot/internal/document"
	"stlcpilot/internal/lifecycle"
	"stlcpilot/internal/output"
	"stlcpilot/internal/stage"
)

func newRunCommand(app *App) *cobra.Command {
	var (
		yes         bool
		maxRedrafts int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run <session-id>",
		Short: "Review every remaining stage interactively",
		Long: `Walk a session through every remaining stage. Each stage is drafted and
shown for review:
  a  approve the draft and advance
  e  edit the draft in $EDITOR, then approve the edited text
  r  discard the draft and generate a new one
  q  stop; everything approved so far is kept

With --yes every draft is approved unchanged. Committing test closure
completes the session and exports its artifacts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if metricsAddr != "" {
				shutdown, addr, err := serveMetrics(metricsAddr, app.Logger)
				if err != nil {
					return err
				}
				app.Printer.Info("metrics on http://%s/metrics", addr)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdown(sctx)
				}()
			}

			var reviewer lifecycle.Reviewer = lifecycle.AutoApprover{}
			if !yes {
				reviewer = newPromptReviewer(app.In, app.Printer, app.Edit)
			}

			exec := lifecycle.NewExecutor(app.Sessions, reviewer)
			exec.SetMaxRedrafts(maxRedrafts)
			exec.SetProgressCallback(func(i, total int, s stage.Stage) {
				app.Printer.StageStart(i, total, s)
			})

			res, err := exec.Execute(ctx, id)
			if errors.Is(err, lifecycle.ErrAborted) {
				app.Printer.Warning("stopped; progress for session %s is saved", id)
				return NewExitError(ExitAborted)
			}
			if err != nil {
				return err
			}

			app.Printer.Success("session %s complete", id)
			app.Printer.Artifacts(res.Paths)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve every draft without review")
	cmd.Flags().IntVar(&maxRedrafts, "max-redrafts", lifecycle.DefaultMaxRedrafts, "regenerations allowed per stage (negative for no limit)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

// serveMetrics starts a Prometheus endpoint on addr and returns its shutdown
// function and the bound address.
func serveMetrics(addr string, logger *slog.Logger) (func(context.Context) error, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv.Shutdown, ln.Addr().String(), nil
}

// promptReviewer asks the user about each proposal on the terminal.
type promptReviewer struct {
	in      *bufio.Reader
	printer *output.Printer
	edit    EditFunc
}

func newPromptReviewer(in io.Reader, printer *output.Printer, edit EditFunc) *promptReviewer {
	return &promptReviewer{in: bufio.NewReader(in), printer: printer, edit: edit}
}

func (r *promptReviewer) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Review implements [lifecycle.Reviewer]. End of input stops the run.
func (r *promptReviewer) Review(ctx context.Context, p lifecycle.Proposal) (lifecycle.Decision, error) {
	r.printer.Draft(document.Draft{Stage: p.Stage, Content: p.Content})

	for {
		r.printer.Info("[a]pprove  [e]dit  [r]egenerate  [q]uit")
		choice, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return lifecycle.Decision{Action: lifecycle.Abort}, nil
		}
		if err != nil {
			return lifecycle.Decision{}, err
		}

		switch strings.ToLower(choice) {
		case "a", "approve", "y", "yes":
			return lifecycle.Decision{Action: lifecycle.Approve}, nil

		case "e", "edit":
			edited, err := r.edit(ctx, p.Content)
			if err != nil {
				return lifecycle.Decision{}, err
			}
			if strings.TrimSpace(edited) == "" {
				r.printer.Warning("edited content is empty; keeping the draft")
				continue
			}
			r.printer.Draft(document.Draft{Stage: p.Stage, Content: edited})
			return lifecycle.Decision{Action: lifecycle.Approve, Content: edited}, nil

		case "r", "regenerate":
			if !p.Generated {
				r.printer.Warning("%s is not generated; edit it instead", p.Stage.Label())
				continue
			}
			r.printer.Info("feedback (optional):")
			feedback, err := r.readLine()
			if err != nil && !errors.Is(err, io.EOF) {
				return lifecycle.Decision{}, err
			}
			return lifecycle.Decision{Action: lifecycle.Regenerate, Feedback: feedback}, nil

		case "q", "quit":
			return lifecycle.Decision{Action: lifecycle.Abort}, nil

		default:
			r.printer.Warning("unknown choice %q", choice)
		}
	}
}
