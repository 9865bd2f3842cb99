package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/queue"
)

func newConsumeCmd(a *app) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Append published notifications to a log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RabbitMQURL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := queue.NewConsumer(a.cfg.RabbitMQURL, a.log)
			if logPath != "" {
				c.LogPath = logPath
			}
			return c.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&logPath, "log-file", "", "destination file (default logs/notifications.log)")
	return cmd
}
