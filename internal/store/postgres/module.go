package postgres

import (
	"github.com/stayware/identity-context-service/internal/store"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"store", fx.Provide(
		fx.Annotate(NewDirectoryStore, fx.As(new(store.DirectoryStore))),
	),
)
