package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/linktrail/internal/analytics"
	analyticsstore "github.com/serroba/linktrail/internal/analytics/store"
	"github.com/serroba/linktrail/internal/messaging"
	"go.uber.org/zap"
)

// ConsumerGroupName is the Redis stream consumer group of the analytics consumers.
const ConsumerGroupName = "analytics"

// PublisherGroupPackage provides the event publisher and the analytics
// publisher built on it.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, memoryPubSub)

	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.Events == BackendMemory {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		client := do.MustInvoke[*RedisClient](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     client.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLoggerAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.Publisher, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewPublisher(group.Publisher(), do.MustInvoke[*zap.Logger](i)), nil
	})
}

// ConsumerGroupPackage provides the analytics consumer group. With in-memory
// events it shares the publisher's channel and must run in the server process.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := subscriberFor(i)
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, analyticsstore.NewLogSink(logger), logger)...)

		return group, nil
	})
}

func memoryPubSub(i *do.Injector) (*gochannel.GoChannel, error) {
	logger := do.MustInvoke[*zap.Logger](i)

	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, messaging.NewZapLoggerAdapter(logger)), nil
}

func subscriberFor(i *do.Injector) (message.Subscriber, error) {
	opts := do.MustInvoke[*Options](i)

	if opts.Events == BackendMemory {
		pubsub, err := do.Invoke[*gochannel.GoChannel](i)
		if err != nil {
			return nil, fmt.Errorf("in-memory events need the publisher in the same process: %w", err)
		}

		return pubsub, nil
	}

	client := do.MustInvoke[*RedisClient](i)

	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client.Client,
		Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: ConsumerGroupName,
	}, messaging.NewZapLoggerAdapter(do.MustInvoke[*zap.Logger](i)))
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return subscriber, nil
}
