package amqp

import (
	"cmp"

	"github.com/ThreeDotsLabs/watermill"
	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stayware/identity-context-service/infra/pubsub/factory"
)

// Factory builds AMQP 0.9.1 publishers/subscribers.
type Factory struct {
	url    string
	logger watermill.LoggerAdapter
}

var _ factory.Factory = (*Factory)(nil)

func NewFactory(url string, logger watermill.LoggerAdapter) (*Factory, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Factory{
		url:    url,
		logger: logger,
	}, nil
}

func (c *Factory) BuildSubscriber(name string, config *SubscriberConfig) (message.Subscriber, error) {

	conf := wamqp.NewDurablePubSubConfig(
		c.url,
		wamqp.GenerateQueueNameConstant(
			cmp.Or(config.Queue, watermill.NewShortUUID()),
		),
	)
	conf.Marshaler = Marshaler{}
	conf.Exchange = wamqp.ExchangeConfig{
		GenerateName: func(topic string) string {
			return config.Exchange.Name
		},
		Type:    cmp.Or(config.Exchange.Type, "topic"),
		Durable: config.Exchange.Durable,
	}
	conf.QueueBind.GenerateRoutingKey = func(topic string) string {
		return cmp.Or(config.RoutingKey, topic)
	}
	conf.Consume.Exclusive = config.ExclusiveConsumer
	// agent queues are private ; drop them with the consumer
	conf.Queue.AutoDelete = true

	return wamqp.NewSubscriber(conf, c.logger)
}

func (c *Factory) BuildPublisher(config *PublisherConfig) (message.Publisher, error) {

	conf := wamqp.NewDurablePubSubConfig(c.url, nil)
	conf.Marshaler = Marshaler{}
	conf.Exchange = wamqp.ExchangeConfig{
		GenerateName: func(topic string) string {
			return config.Exchange.Name
		},
		Type:    cmp.Or(config.Exchange.Type, "topic"),
		Durable: config.Exchange.Durable,
	}
	conf.Publish.GenerateRoutingKey = func(topic string) string {
		return topic
	}

	return wamqp.NewPublisher(conf, c.logger)
}

type SubscriberConfig = factory.SubscriberConfig
type PublisherConfig = factory.PublisherConfig
