package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher publishes relay events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// PubSub pairs a publisher with the subscriber that receives its messages.
// The built-in gochannel driver backs both sides with one in-process channel,
// so a publish is visible to the worker without any external broker.
type PubSub struct {
	pub     message.Publisher
	sub     message.Subscriber
	closeFn func() error
}

// PubSubFactory builds the publisher and subscriber for a driver. Both may be
// the same object.
type PubSubFactory func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, func() error, error)

var pubSubFactories = map[string]PubSubFactory{
	"gochannel": buildGoChannelPubSub,
}

// RegisterPubSubDriver registers a custom pub/sub driver. It allows wiring an
// external broker without changing this package.
func RegisterPubSubDriver(name string, factory PubSubFactory) {
	if name == "" || factory == nil {
		return
	}
	pubSubFactories[strings.ToLower(name)] = factory
}

func NewPubSub(cfg WatermillConfig) (*PubSub, error) {
	logger := watermill.NewStdLogger(false, false)

	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "gochannel"
	}
	factory, ok := pubSubFactories[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported watermill driver: %s", cfg.Driver)
	}

	pub, sub, closeFn, err := factory(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &PubSub{pub: pub, sub: sub, closeFn: closeFn}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.pub.Publish(topic, msg)
}

// Subscriber returns the receiving side of the pub/sub pair.
func (p *PubSub) Subscriber() message.Subscriber {
	return p.sub
}

func (p *PubSub) Close() error {
	err := p.pub.Close()
	if any(p.sub) != any(p.pub) {
		err = errors.Join(err, p.sub.Close())
	}
	if p.closeFn != nil {
		err = errors.Join(err, p.closeFn())
	}
	return err
}

func buildGoChannelPubSub(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, func() error, error) {
	channel := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
			Persistent:                     cfg.GoChannel.Persistent,
			BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
		},
		logger,
	)
	return channel, channel, nil, nil
}
