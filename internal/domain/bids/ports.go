package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autobizz/autobet/internal/domain/auctions"
)

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// CountByAuctionAndBuyer counts a buyer's bids on one auction. Called
	// within the placement transaction while the auction row is locked.
	CountByAuctionAndBuyer(ctx context.Context, tx pgx.Tx, auctionID, buyerID uuid.UUID) (int, error)

	// GetBestBid returns the highest bid on an auction, or nil.
	GetBestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error)

	// ListBidsByAuctionID retrieves all bids for an auction, highest first.
	ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// ListBidsForAuctions retrieves bids for many auctions at once, keyed by
	// auction, each list highest first.
	ListBidsForAuctions(ctx context.Context, auctionIDs []uuid.UUID) (map[uuid.UUID][]*Bid, error)
}

// AuctionRepository is the slice of the auctions repository bid placement needs.
type AuctionRepository interface {
	// GetAuctionByIDForUpdate locks the auction row so concurrent bids on the
	// same auction serialize.
	GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error)
}
