package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autobizz/autobet/internal/domain/auctions"
	pkgdb "github.com/autobizz/autobet/pkg/database"
)

// PostgresAuctionRepository implements auctions.Repository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

const auctionColumns = `id, seller_id, title, description, min_price_cents, currency,
	image_urls, carte_grise_image_url, status, start_at, end_at, created_at, updated_at`

func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, tx pgx.Tx, auction *auctions.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		auction.ID,
		auction.SellerID,
		auction.Title,
		auction.Description,
		auction.MinPriceCents,
		auction.Currency,
		auction.ImageURLs,
		auction.CarteGriseImageURL,
		auction.Status,
		auction.StartAt,
		auction.EndAt,
		auction.CreatedAt,
		auction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func (r *PostgresAuctionRepository) GetAuctionByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	return r.getAuctionByID(ctx, r.pool, id, false)
}

// GetAuctionByIDForUpdate locks the auction row; bid placement serializes on it.
func (r *PostgresAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	return r.getAuctionByID(ctx, tx, id, true)
}

func (r *PostgresAuctionRepository) getAuctionByID(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var auction auctions.Auction
	err := db.QueryRow(ctx, query, id).Scan(auctionFields(&auction)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &auction, nil
}

func (r *PostgresAuctionRepository) ListAuctions(ctx context.Context, q auctions.ListQuery) ([]*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	where, args := buildAuctionFilters(q, nil)
	query += where + auctionOrder(q.Sort)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryAuctions(ctx, query, args...)
}

func (r *PostgresAuctionRepository) ListParticipating(ctx context.Context, buyerID uuid.UUID, q auctions.ListQuery) ([]*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := []any{buyerID}
	where, args := buildAuctionFilters(q, args)
	if where == "" {
		where = " WHERE"
	} else {
		where += " AND"
	}
	where += ` EXISTS (SELECT 1 FROM bids WHERE bids.auction_id = auctions.id AND bids.buyer_id = $1)`
	query += where + auctionOrder(q.Sort)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryAuctions(ctx, query, args...)
}

func (r *PostgresAuctionRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, status string) ([]*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE seller_id = $1`
	args := []any{sellerID}
	if status != "" && status != "all" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	return r.queryAuctions(ctx, query, args...)
}

func (r *PostgresAuctionRepository) UpdateAuction(ctx context.Context, tx pgx.Tx, auction *auctions.Auction) error {
	query := `
		UPDATE auctions
		SET title = $1, description = $2, min_price_cents = $3, currency = $4,
			image_urls = $5, carte_grise_image_url = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := tx.Exec(ctx, query,
		auction.Title,
		auction.Description,
		auction.MinPriceCents,
		auction.Currency,
		auction.ImageURLs,
		auction.CarteGriseImageURL,
		auction.UpdatedAt,
		auction.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("auction not found")
	}
	return nil
}

func (r *PostgresAuctionRepository) DeleteAuction(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM bids WHERE auction_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete bids: %w", err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("auction not found")
	}
	return nil
}

// ListExpiredActive locks up to limit expired active auctions for the sweep.
func (r *PostgresAuctionRepository) ListExpiredActive(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = 'active' AND end_at <= $1
		ORDER BY end_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired auctions: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

func (r *PostgresAuctionRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auctions.Status) error {
	query := `UPDATE auctions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update auction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("auction not found")
	}
	return nil
}

// Helpers

func buildAuctionFilters(q auctions.ListQuery, args []any) (string, []any) {
	var clauses []string
	if q.Status != "" && q.Status != "all" {
		args = append(args, q.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.CreatedAfter != nil {
		args = append(args, *q.CreatedAfter)
		clauses = append(clauses, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}

func auctionOrder(sort string) string {
	if sort == "created" {
		return " ORDER BY created_at DESC"
	}
	return " ORDER BY start_at DESC"
}

func (r *PostgresAuctionRepository) queryAuctions(ctx context.Context, query string, args ...any) ([]*auctions.Auction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

func collectAuctions(rows pgx.Rows) ([]*auctions.Auction, error) {
	var result []*auctions.Auction
	for rows.Next() {
		var auction auctions.Auction
		if err := rows.Scan(auctionFields(&auction)...); err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		result = append(result, &auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return result, nil
}

func auctionFields(a *auctions.Auction) []any {
	return []any{
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.Description,
		&a.MinPriceCents,
		&a.Currency,
		&a.ImageURLs,
		&a.CarteGriseImageURL,
		&a.Status,
		&a.StartAt,
		&a.EndAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}
