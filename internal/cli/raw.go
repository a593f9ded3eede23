package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRawCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <prompt>",
		Short: "Send an arbitrary prompt to the generator",
		Long: `Send a prompt straight to the configured generator and print the reply.
Useful for checking provider settings. No session is touched.

Example:
  stlcpilot raw "Reply with OK"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if t := app.Config.Generator.Timeout; t > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}
			text, err := app.Generator.Generate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Printer.Writer(), text)
			return nil
		},
	}
}
