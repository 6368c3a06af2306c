package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/kiosko/pos/internal/services"
)

// PubSubSalePublisher publishes committed sale events to a Pub/Sub topic.
// Downstream consumers (reporting, stock replenishment) subscribe to it.
type PubSubSalePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSalePublisher constructs a Pub/Sub backed sale event publisher.
func NewPubSubSalePublisher(topic *pubsub.Topic) (*PubSubSalePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub sale publisher: topic is required")
	}
	return &PubSubSalePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

var _ services.SaleEventPublisher = (*PubSubSalePublisher)(nil)

// PublishSaleCommitted enqueues a sale event message on the configured topic.
func (p *PubSubSalePublisher) PublishSaleCommitted(ctx context.Context, message services.SaleCommittedMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub sale publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal sale event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "saleId", message.SaleID)
	setAttr(attrs, "method", message.Method)
	setAttr(attrs, "register", message.PointOfSaleID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish sale event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
