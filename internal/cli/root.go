// Package cli defines the facility-reservation command tree.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/config"
	"github.com/iliyamo/facility-reservation/internal/logging"
)

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	envFile string
	cfg     config.Config
	log     zerolog.Logger
}

// NewRoot builds the root command.
func NewRoot() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "facility",
		Short:         "Facility reservation and waitlist engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(a.envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.InitWriter(cmd.ErrOrStderr(), "facility-reservation", cfg.Env)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSweepCmd(a),
		newConsumeCmd(a),
		newTokenCmd(a),
		newCatalogCmd(a),
	)
	return cmd
}
