package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kiosko/pos/internal/services"
)

func TestPubSubSalePublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "sale-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubSalePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSalePublisher: %v", err)
	}

	committedAt := time.Date(2025, 3, 10, 14, 25, 0, 0, time.UTC)
	msg := services.SaleCommittedMessage{
		SaleID:        "sale-01HX",
		Number:        42,
		Total:         "159.50",
		Method:        "CASH",
		PointOfSaleID: "pos-2",
		LineCount:     3,
		CommittedAt:   committedAt,
	}

	if _, err := publisher.PublishSaleCommitted(ctx, msg); err != nil {
		t.Fatalf("PublishSaleCommitted: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.SaleCommittedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.SaleID != msg.SaleID || payload.Number != msg.Number || payload.Total != msg.Total {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["register"]; attr != "pos-2" {
		t.Fatalf("expected register attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["method"]; attr != "CASH" {
		t.Fatalf("expected method attribute, got %q", attr)
	}
}
