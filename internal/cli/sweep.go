package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/service"
)

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Apply due time-based transitions once and exit",
		Long: "Completes ended reservations, expires lapsed waitlist holds " +
			"(promoting the next user) and expires queue entries of past slots.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer store.DB().Close()

			eng := service.New(store, a.engineOptions(), service.NoopNotifier{}, a.log)
			res, err := eng.Sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
