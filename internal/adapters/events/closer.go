package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/autobizz/autobet/internal/domain/auctions"
)

// AuctionCloser periodically sweeps auctions whose 24-hour window has passed
// and closes them. Closing emits auction.closed through the outbox, so the
// relay and consumer take it from there.
type AuctionCloser struct {
	service   *auctions.Service
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewAuctionCloser(service *auctions.Service, interval time.Duration, batchSize int, logger *slog.Logger) *AuctionCloser {
	return &AuctionCloser{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run starts the sweep loop
func (c *AuctionCloser) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *AuctionCloser) sweep(ctx context.Context) {
	closed, err := c.service.CloseExpired(ctx, c.batchSize)
	if err != nil {
		c.logger.Error("Expiry sweep failed", "error", err)
		return
	}
	if closed > 0 {
		c.logger.Info("Closed expired auctions", "count", closed)
	}
}
