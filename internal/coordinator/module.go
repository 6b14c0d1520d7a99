package coordinator

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/stayware/identity-context-service/config"
	"github.com/stayware/identity-context-service/infra/pubsub"
	"github.com/stayware/identity-context-service/internal/audit"
	"github.com/stayware/identity-context-service/internal/directory"
	"github.com/stayware/identity-context-service/internal/resolver"
	"github.com/stayware/identity-context-service/internal/session"
)

var Module = fx.Module(
	"coordinator",
	fx.Provide(
		func(
			logger *slog.Logger,
			sessions *session.Store,
			dir *directory.Directory,
			res *resolver.Resolver,
			emitter *audit.Emitter,
		) *Coordinator {
			return New(logger, sessions, dir, res, emitter)
		},
	),
	fx.Invoke(
		Run,
	),
)

// Run attaches the coordinator to the application lifecycle:
// broker subscription + first initialization on start, orderly
// teardown on stop.
func Run(lc fx.Lifecycle, c *Coordinator, broker pubsub.Provider, cfg *config.Config) error {

	if err := c.Subscribe(broker, cfg.Service.Id); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// NO_SESSION here is a state, not a startup failure
			_, err := c.Init(ctx)
			return err
		},
		OnStop: func(ctx context.Context) error {
			c.Teardown()
			return nil
		},
	})

	return nil
}
