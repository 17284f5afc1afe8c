package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/autobizz/autobet/internal/domain/notifications"
	pkgevents "github.com/autobizz/autobet/pkg/events"
)

const notificationQueue = "auction_notifications"

// Pusher delivers a rendered notification to a set of device tokens.
type Pusher interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]any)
}

// NotificationConsumer turns auction events into in-app notification rows and
// best-effort push deliveries. New auctions fan out to every active buyer; bid
// and closing updates go to the parties of the auction.
type NotificationConsumer struct {
	conn         *amqp.Connection
	service      *notifications.Service
	audienceRepo notifications.AudienceRepository
	pusher       Pusher
	logger       *slog.Logger
}

func NewNotificationConsumer(
	conn *amqp.Connection,
	service *notifications.Service,
	audienceRepo notifications.AudienceRepository,
	pusher Pusher,
	logger *slog.Logger,
) *NotificationConsumer {
	return &NotificationConsumer{
		conn:         conn,
		service:      service,
		audienceRepo: audienceRepo,
		pusher:       pusher,
		logger:       logger,
	}
}

// Run starts the consumer loop
func (c *NotificationConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		notificationQueue, // queue
		"",                // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for auction events...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			if err := c.handleDelivery(ctx, d.RoutingKey, d.Body); err != nil {
				c.logger.Error("Failed to process event", "routing_key", d.RoutingKey, "error", err)
				// Requeue so transient failures retry
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			if ackErr := d.Ack(false); ackErr != nil {
				c.logger.Error("Failed to Ack message", "error", ackErr)
			}
		}
	}
}

func (c *NotificationConsumer) handleDelivery(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case pkgevents.TypeAuctionCreated:
		return c.handleAuctionCreated(ctx, body)
	case pkgevents.TypeBidPlaced:
		return c.handleBidPlaced(ctx, body)
	case pkgevents.TypeAuctionClosed:
		return c.handleAuctionClosed(ctx, body)
	default:
		// Unknown keys are dropped, not requeued
		c.logger.Warn("Ignoring unknown routing key", "routing_key", routingKey)
		return nil
	}
}

func (c *NotificationConsumer) handleAuctionCreated(ctx context.Context, body []byte) error {
	var event pkgevents.AuctionCreated
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Failed to unmarshal auction.created event", "error", err)
		return nil // poison message, drop it
	}

	buyers, err := c.audienceRepo.ListActiveBuyerIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve buyer audience: %w", err)
	}

	payload := map[string]any{"auction_id": event.AuctionID}
	if _, err := c.service.CreateForUsers(ctx, buyers, notifications.TypeNewAuction, payload); err != nil {
		return err
	}

	text := event.Title
	if text == "" {
		text = "A new vehicle auction just went live."
	}
	c.push(ctx, buyers, "New auction available", text, map[string]any{
		"auction_id": event.AuctionID,
		"type":       string(notifications.TypeNewAuction),
	})
	return nil
}

func (c *NotificationConsumer) handleBidPlaced(ctx context.Context, body []byte) error {
	var event pkgevents.BidPlaced
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Failed to unmarshal bid event", "error", err)
		return nil
	}

	sellerID, err := uuid.Parse(event.SellerID)
	if err != nil {
		c.logger.Error("Bid event carries invalid seller id", "seller_id", event.SellerID)
		return nil
	}

	recipients := []uuid.UUID{sellerID}
	payload := map[string]any{
		"auction_id": event.AuctionID,
		"latest_bid": map[string]any{
			"id":           event.BidID,
			"buyer_id":     event.BuyerID,
			"amount_cents": event.AmountCents,
			"created_at":   event.CreatedAt,
		},
	}
	if _, err := c.service.CreateForUsers(ctx, recipients, notifications.TypeResult, payload); err != nil {
		return err
	}

	text := fmt.Sprintf("Latest bid: %s %.2f", event.Currency, float64(event.AmountCents)/100)
	c.push(ctx, recipients, "Auction update", text, map[string]any{
		"auction_id": event.AuctionID,
		"type":       string(notifications.TypeResult),
	})
	return nil
}

func (c *NotificationConsumer) handleAuctionClosed(ctx context.Context, body []byte) error {
	var event pkgevents.AuctionClosed
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Failed to unmarshal auction.closed event", "error", err)
		return nil
	}

	auctionID, err := uuid.Parse(event.AuctionID)
	if err != nil {
		c.logger.Error("Close event carries invalid auction id", "auction_id", event.AuctionID)
		return nil
	}
	sellerID, err := uuid.Parse(event.SellerID)
	if err != nil {
		c.logger.Error("Close event carries invalid seller id", "seller_id", event.SellerID)
		return nil
	}

	bidders, err := c.audienceRepo.ListBidderIDs(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to resolve bidder audience: %w", err)
	}

	recipients := append([]uuid.UUID{sellerID}, bidders...)
	payload := map[string]any{
		"auction_id": event.AuctionID,
		"closed_at":  event.ClosedAt,
	}
	if _, err := c.service.CreateForUsers(ctx, recipients, notifications.TypeResult, payload); err != nil {
		return err
	}

	text := "There is an update on your auction."
	if event.Title != "" {
		text = fmt.Sprintf("%s has ended.", event.Title)
	}
	c.push(ctx, recipients, "Auction update", text, map[string]any{
		"auction_id": event.AuctionID,
		"type":       string(notifications.TypeResult),
	})
	return nil
}

// push resolves device tokens and fires the batch. Push failures never fail
// the event; the in-app row is already committed.
func (c *NotificationConsumer) push(ctx context.Context, userIDs []uuid.UUID, title, body string, data map[string]any) {
	tokens, err := c.service.PushTokensForUsers(ctx, userIDs)
	if err != nil {
		c.logger.Error("Failed to resolve push tokens", "error", err)
		return
	}
	if len(tokens) == 0 {
		return
	}
	c.pusher.Send(ctx, tokens, title, body, data)
}

func (c *NotificationConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		notificationQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return err
	}

	// One binding catches every auction event
	return ch.QueueBind(
		q.Name,       // queue name
		"auction.*",  // routing key
		ExchangeName, // exchange
		false,
		nil,
	)
}
