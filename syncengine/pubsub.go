package syncengine

import (
	"context"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// PubSubFeed carries sale-insert events between terminals over Google
// Pub/Sub. Each terminal owns one subscription on the shared topic, named
// after its terminal id, so every terminal sees every event.
type PubSubFeed struct {
	TerminalID string
}

func NewPubSubFeed(terminalID string) *PubSubFeed {
	return &PubSubFeed{TerminalID: terminalID}
}

func feedTopicName() string {
	name := strings.TrimSpace(os.Getenv("SALES_FEED_TOPIC"))
	if name == "" {
		name = "register-sale-inserts"
	}
	return name
}

func (f *PubSubFeed) Publish(ctx context.Context, row models.SharedSaleRow) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(feedTopicName())
	if config.BoolFromEnv("SALES_FEED_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, feedTopicName())
		if err != nil {
			return err
		}
	}

	data, err := utils.MarshalToJSON(row)
	if err != nil {
		return err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

func (f *PubSubFeed) Subscribe(ctx context.Context, handler func(models.SharedSaleRow)) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic, err := config.CreateTopicIfNotExists(client, feedTopicName())
	if err != nil {
		return err
	}

	sub, err := config.CreateSubscriptionIfNotExists(client, feedTopicName()+"-"+f.TerminalID, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var row models.SharedSaleRow
		if err := utils.UnmarshalFromJSON(msg.Data, &row); err != nil {
			// Malformed event: ack and drop, the sweep will not miss a
			// real row.
			msg.Ack()
			return
		}
		handler(row)
		msg.Ack()
	})
}
