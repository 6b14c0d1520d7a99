package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stayware/identity-context-service/infra/pubsub/factory"
)

// Provider of message broker capabilities:
// the shared router plus a transport-specific factory.
type Provider interface {
	GetRouter() *message.Router
	GetFactory() factory.Factory
}

type defaultProvider struct {
	router  *message.Router
	factory factory.Factory
}

func NewDefaultProvider(router *message.Router, build factory.Factory) (Provider, error) {
	return &defaultProvider{
		router:  router,
		factory: build,
	}, nil
}

func (c *defaultProvider) GetRouter() *message.Router {
	return c.router
}

func (c *defaultProvider) GetFactory() factory.Factory {
	return c.factory
}
