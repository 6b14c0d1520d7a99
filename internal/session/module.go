package session

import (
	"go.uber.org/fx"

	"github.com/stayware/identity-context-service/internal/client/idp"
)

var Module = fx.Module(
	"session", fx.Provide(
		NewStore,
		func(c *idp.Client) Provider { return c },
	),
)
