package resolver

import (
	"go.uber.org/fx"

	"github.com/stayware/identity-context-service/internal/directory"
)

var Module = fx.Module(
	"resolver", fx.Provide(
		New,
		func(c *directory.Directory) Remote { return c },
	),
)
