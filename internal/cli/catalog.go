package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the facility catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Create or update facilities and sessions from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			file, err := catalog.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			store, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer store.DB().Close()

			res, err := catalog.NewImporter(store).Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			a.log.Info().Int("facilities_created", res.FacilitiesCreated).Int("facilities_updated", res.FacilitiesUpdated).
				Int("sessions_created", res.SessionsCreated).Int("sessions_updated", res.SessionsUpdated).Msg("catalog imported")
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	})
	return cmd
}
