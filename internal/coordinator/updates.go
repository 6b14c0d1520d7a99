package coordinator

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stayware/identity-context-service/infra/pubsub"
	"github.com/stayware/identity-context-service/infra/pubsub/factory"
)

// Subscribe attaches the coordinator to platform invalidation
// notifications. The queue is exclusive to this [node] instance.
// Broker-less runs are fine: no-op.
func (c *Coordinator) Subscribe(broker pubsub.Provider, node string) error {

	if broker == nil {
		return nil
	}

	sub, err := broker.GetFactory().BuildSubscriber(
		"", // name ; autogen
		&factory.SubscriberConfig{
			Exchange: factory.ExchangeConfig{
				Name:    "stayware",
				Type:    "topic",
				Durable: true, // exchange durable(!)
			},
			Queue:             "identity-context-" + node,
			RoutingKey:        "invalidate.#",
			ExclusiveConsumer: true,
		},
	)

	if err != nil {
		return err
	}

	_ = broker.GetRouter().AddHandler(
		"stayware",
		// subscriber
		"#", sub,
		// publisher
		"", nil,
		// handler
		c.onInvalidate,
	)

	return nil
}

func (c *Coordinator) onInvalidate(update *message.Message) (_ []*message.Message, _ error) {

	// invalidate.session.d42f82ab-421a-49c6-98a2-5af30abc5b2a
	// [ Properties -> headers ]:
	// cause:	revoke
	// event:	invalidate
	// objclass:	session
	// session:	d42f82ab-421a-49c6-98a2-5af30abc5b2a
	// timestamp:	1769509517003

	topic := update.Metadata.Get(".topic")

	cause := update.Metadata.Get("cause")
	objclass := update.Metadata.Get("objclass")
	objectId := update.Metadata.Get(objclass)

	c.logger.Debug(
		("[ RECV::MSG ] " + topic),
		"invalidate", cause,
		"objclass", objclass,
		objclass, objectId,
	)

	switch objclass {
	case "session":
		// A "signed out" notification NOT caused by this process is
		// treated as spurious (broker hiccups, duplicate deliveries,
		// unrelated device sessions) ; local state survives it.
		// Only an explicit local sign-out already cleared state, in
		// which case there is nothing left to do either way.
		if !c.explicitLogout.Load() {
			c.logger.Debug("invalidate: spurious sign-out ignored",
				"session", objectId,
			)
			break
		}
	case "context", "role", "workspace":
		// membership/permission data changed ; re-fetch
		snap := c.State()
		if snap.Status != StatusReady {
			break
		}
		if err := c.RefreshContexts(context.Background()); err != nil {
			c.logger.Warn("invalidate: context refresh failed", "error", err)
		}
	}

	// ACK ; No publish !
	return nil, nil
}
