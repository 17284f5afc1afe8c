package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListQuery filters the public auction listing.
type ListQuery struct {
	// Status filters by auction status; "all" disables the filter. Empty
	// defaults to active.
	Status string
	// CreatedAfter keeps only auctions created strictly after the timestamp.
	CreatedAfter *time.Time
	// Sort is "fresh" (start_at desc, default) or "created" (created_at desc).
	Sort string
	// Limit caps the result; values <= 0 or above DefaultPageSize are clamped.
	Limit int
}

type Repository interface {
	CreateAuction(ctx context.Context, tx pgx.Tx, auction *Auction) error
	GetAuctionByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetAuctionByIDForUpdate locks the auction row; bids serialize on it.
	GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)
	ListAuctions(ctx context.Context, q ListQuery) ([]*Auction, error)
	// ListParticipating returns auctions the buyer has bid on.
	ListParticipating(ctx context.Context, buyerID uuid.UUID, q ListQuery) ([]*Auction, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, status string) ([]*Auction, error)
	UpdateAuction(ctx context.Context, tx pgx.Tx, auction *Auction) error
	// DeleteAuction removes the auction and its bids.
	DeleteAuction(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// ListExpiredActive locks up to limit active auctions whose window has
	// passed (FOR UPDATE SKIP LOCKED), for the expiry sweep.
	ListExpiredActive(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*Auction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) error
}

// ListingCache fronts the hot public listing read path.
type ListingCache interface {
	GetListing(ctx context.Context, key string) ([]*Auction, bool)
	SetListing(ctx context.Context, key string, auctions []*Auction)
	Invalidate(ctx context.Context)
}
