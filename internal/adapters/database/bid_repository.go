package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autobizz/autobet/internal/domain/bids"
)

// PostgresBidRepository implements bids.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, buyer_id, amount_cents, idx_per_buyer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BuyerID,
		bid.AmountCents,
		bid.IdxPerBuyer,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *PostgresBidRepository) CountByAuctionAndBuyer(ctx context.Context, tx pgx.Tx, auctionID, buyerID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND buyer_id = $2`
	var count int
	if err := tx.QueryRow(ctx, query, auctionID, buyerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

func (r *PostgresBidRepository) GetBestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT id, auction_id, buyer_id, amount_cents, idx_per_buyer, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount_cents DESC
		LIMIT 1
	`
	var bid bids.Bid
	err := tx.QueryRow(ctx, query, auctionID).Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BuyerID,
		&bid.AmountCents,
		&bid.IdxPerBuyer,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get best bid: %w", err)
	}
	return &bid, nil
}

func (r *PostgresBidRepository) ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT b.id, b.auction_id, b.buyer_id, b.amount_cents, b.idx_per_buyer, b.created_at, u.username
		FROM bids b
		JOIN users u ON u.id = b.buyer_id
		WHERE b.auction_id = $1
		ORDER BY b.amount_cents DESC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	return collectBids(rows)
}

func (r *PostgresBidRepository) ListBidsForAuctions(ctx context.Context, auctionIDs []uuid.UUID) (map[uuid.UUID][]*bids.Bid, error) {
	query := `
		SELECT b.id, b.auction_id, b.buyer_id, b.amount_cents, b.idx_per_buyer, b.created_at, u.username
		FROM bids b
		JOIN users u ON u.id = b.buyer_id
		WHERE b.auction_id = ANY($1)
		ORDER BY b.amount_cents DESC
	`
	rows, err := r.pool.Query(ctx, query, auctionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	list, err := collectBids(rows)
	if err != nil {
		return nil, err
	}

	byAuction := make(map[uuid.UUID][]*bids.Bid, len(auctionIDs))
	for _, bid := range list {
		byAuction[bid.AuctionID] = append(byAuction[bid.AuctionID], bid)
	}
	return byAuction, nil
}

func collectBids(rows pgx.Rows) ([]*bids.Bid, error) {
	var result []*bids.Bid
	for rows.Next() {
		var bid bids.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BuyerID,
			&bid.AmountCents,
			&bid.IdxPerBuyer,
			&bid.CreatedAt,
			&bid.BuyerUsername,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}
