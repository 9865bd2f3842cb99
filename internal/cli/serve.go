package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/facility-reservation/internal/config"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/router"
	"github.com/iliyamo/facility-reservation/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openStore(ctx, migrate)
			if err != nil {
				return err
			}
			defer store.DB().Close()

			var notifier service.Notifier = service.NoopNotifier{}
			if a.cfg.RabbitMQURL != "" {
				pub, err := queue.Dial(a.cfg.RabbitMQURL, queue.DefaultPublisherOptions(), a.log)
				if err != nil {
					a.log.Warn().Err(err).Msg("notification broker unavailable, events will be dropped")
				} else {
					defer pub.Close()
					notifier = pub
				}
			}

			rdb := config.NewRedisClient(config.LoadRedisConfig())
			if rdb == nil {
				a.log.Warn().Msg("redis unavailable, rate limiting and caching disabled")
			} else {
				defer rdb.Close()
			}

			eng := service.New(store, a.engineOptions(), notifier, a.log)
			e := router.New(router.Deps{
				DB:        store.DB(),
				Engine:    eng,
				JWTSecret: a.cfg.JWTSecret,
				Redis:     rdb,
				RateLimit: config.LoadRateLimitConfig(),
				Cache:     config.LoadCacheConfig(),
				Log:       a.log,
			})

			if a.cfg.SweepInterval > 0 {
				go eng.Sweeper.Run(ctx, a.cfg.SweepInterval)
			}

			errc := make(chan error, 1)
			go func() {
				a.log.Info().Str("port", a.cfg.Port).Msg("http server listening")
				errc <- e.Start(":" + a.cfg.Port)
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}
