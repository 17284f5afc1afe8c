package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/pkg/database"
	"github.com/autobizz/autobet/pkg/events"
)

var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction not active")
	ErrAuctionClosed    = errors.New("auction already closed")
	ErrBidLimitReached  = errors.New("bid limit reached for this auction")
	ErrBidBelowMinimum  = errors.New("bid below minimum price")
	ErrBidNotHighest    = errors.New("bid must be higher than current best")
	ErrInvalidBidAmount = errors.New("bid amount must be positive")
)

type PlaceBidCommand struct {
	AuctionID   uuid.UUID
	BuyerID     uuid.UUID
	AmountCents int64
}

// Service implements bid placement with the transactional outbox pattern: the
// bid and its event are saved in the same database transaction.
type Service struct {
	txManager   database.TransactionManager
	bidRepo     BidRepository
	auctionRepo AuctionRepository
	outboxRepo  events.OutboxRepository
	cache       auctions.ListingCache
}

func NewService(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	auctionRepo AuctionRepository,
	outboxRepo events.OutboxRepository,
	cache auctions.ListingCache,
) *Service {
	return &Service{
		txManager:   txManager,
		bidRepo:     bidRepo,
		auctionRepo: auctionRepo,
		outboxRepo:  outboxRepo,
		cache:       cache,
	}
}

// PlaceBid validates and records a buyer's bid. The auction row is locked for
// the duration of the transaction so concurrent bids serialize.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.AmountCents <= 0 {
		return nil, ErrInvalidBidAmount
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.auctionRepo.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}

	now := time.Now()
	if auction.Status != auctions.StatusActive {
		return nil, ErrAuctionNotActive
	}
	if auction.Ended(now) {
		return nil, ErrAuctionClosed
	}

	existing, err := s.bidRepo.CountByAuctionAndBuyer(ctx, tx, cmd.AuctionID, cmd.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bids: %w", err)
	}
	if existing >= MaxBidsPerBuyer {
		return nil, ErrBidLimitReached
	}

	if cmd.AmountCents < auction.MinPriceCents {
		return nil, ErrBidBelowMinimum
	}

	best, err := s.bidRepo.GetBestBid(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get best bid: %w", err)
	}
	if best != nil && cmd.AmountCents <= best.AmountCents {
		return nil, ErrBidNotHighest
	}

	bid := &Bid{
		ID:          uuid.New(),
		AuctionID:   cmd.AuctionID,
		BuyerID:     cmd.BuyerID,
		AmountCents: cmd.AmountCents,
		IdxPerBuyer: existing + 1,
		CreatedAt:   now,
	}

	if err := s.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}

	payload, err := json.Marshal(events.BidPlaced{
		BidID:       bid.ID.String(),
		AuctionID:   auction.ID.String(),
		SellerID:    auction.SellerID.String(),
		BuyerID:     bid.BuyerID.String(),
		AmountCents: bid.AmountCents,
		Currency:    auction.Currency,
		CreatedAt:   bid.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.TypeBidPlaced,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if err := s.outboxRepo.CreateEvent(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Listing previews embed the best bid, so they are stale now.
	s.cache.Invalidate(ctx)

	return bid, nil
}

// GetBidsForAuction returns all bids on an auction, highest first.
func (s *Service) GetBidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	list, err := s.bidRepo.ListBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return list, nil
}

// GetBidsForAuctions returns bids for many auctions keyed by auction id.
func (s *Service) GetBidsForAuctions(ctx context.Context, auctionIDs []uuid.UUID) (map[uuid.UUID][]*Bid, error) {
	if len(auctionIDs) == 0 {
		return map[uuid.UUID][]*Bid{}, nil
	}
	byAuction, err := s.bidRepo.ListBidsForAuctions(ctx, auctionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return byAuction, nil
}
