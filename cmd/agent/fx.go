package agent

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/stayware/identity-context-service/cmd"
	"github.com/stayware/identity-context-service/config"
	"github.com/stayware/identity-context-service/internal/audit"
	"github.com/stayware/identity-context-service/internal/coordinator"
	"github.com/stayware/identity-context-service/internal/directory"
	"github.com/stayware/identity-context-service/internal/resolver"
	"github.com/stayware/identity-context-service/internal/session"
	"github.com/stayware/identity-context-service/internal/store/postgres"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			cmd.ProvideLogger,
			cmd.ProvidePubSub,
			cmd.ProvideNewDBConnection,
			cmd.ProvideStateStore,
			cmd.ProvideIdpClient,
		),
		postgres.Module,
		session.Module,
		directory.Module,
		resolver.Module,
		audit.Module,
		coordinator.Module,
		fx.Invoke(watchState),
	)
}

// watchState mirrors auth-state transitions into the agent log.
func watchState(lc fx.Lifecycle, logger *slog.Logger, c *coordinator.Coordinator) {

	var w *coordinator.Watcher

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w = c.Watch()
			go func() {
				var last coordinator.Status
				for snap := range w.Updates() {
					if snap.Status == last && snap.Err == nil {
						continue
					}
					last = snap.Status
					attrs := []any{"status", string(snap.Status)}
					if snap.Current != nil {
						attrs = append(attrs, "context.id", snap.Current.Id)
					}
					if snap.Err != nil {
						attrs = append(attrs, "error", snap.Err)
					}
					logger.Info("auth state", attrs...)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.Close()
			return nil
		},
	})
}
