package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/utils"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID uint64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			if role != model.RoleResident && role != model.RoleAdmin {
				return fmt.Errorf("--role must be %s or %s", model.RoleResident, model.RoleAdmin)
			}
			if ttl <= 0 {
				ttl = time.Duration(a.cfg.AccessTTLMin) * time.Minute
			}
			tok, err := utils.NewAccessToken(a.cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", model.RoleResident, "RESIDENT or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (default ACCESS_TOKEN_TTL_MIN)")
	return cmd
}
