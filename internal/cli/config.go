package cli

import (
	"github.com/spf13/cobra"

	"stlcpilot/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(app))
	return cmd
}

func newConfigInitCommand(app *App) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the default configuration to the user config directory, or to
--path, as a starting point for customizing stage instructions and the
generator. An existing file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitUserConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.WriteDefaults(path, force); err != nil {
				return err
			}
			app.Printer.Success("wrote default configuration to %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "file to write (default: user config directory)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
