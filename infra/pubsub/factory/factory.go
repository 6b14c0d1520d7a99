package factory

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// Factory builds broker-specific publishers and subscribers.
type Factory interface {
	BuildSubscriber(name string, config *SubscriberConfig) (message.Subscriber, error)
	BuildPublisher(config *PublisherConfig) (message.Publisher, error)
}

// ExchangeConfig declaration.
type ExchangeConfig struct {
	// Exchange name
	Name string
	// Exchange type, e.g. "topic"
	Type string
	// Survive broker restarts
	Durable bool
}

type SubscriberConfig struct {
	Exchange ExchangeConfig
	// Queue name ; autogen if blank
	Queue string
	// Binding routing key pattern
	RoutingKey string
	// Single consumer per queue
	ExclusiveConsumer bool
}

type PublisherConfig struct {
	Exchange ExchangeConfig
}
