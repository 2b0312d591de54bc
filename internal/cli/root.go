package cli

import (
	"os"

	"tourbook/pkg/config"

	"github.com/spf13/cobra"
)

const ServiceName = "tourbook"

// RootOptions holds flags shared by every command.
type RootOptions struct {
	ConfigFile string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tourbook",
		Short: "Tour booking and availability scheduling engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigFile != "" {
				return os.Setenv(config.EnvConfigFile, opts.ConfigFile)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML file with default environment values")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewHygieneCommand(opts))

	return cmd
}
