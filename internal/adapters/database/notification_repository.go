package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autobizz/autobet/internal/domain/notifications"
)

// PostgresNotificationRepository implements notifications.NotificationRepository
type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

func (r *PostgresNotificationRepository) CreateNotifications(ctx context.Context, list []*notifications.Notification) error {
	if len(list) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO notifications (id, user_id, type, payload, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, n := range list {
		batch.Queue(query, n.ID, n.UserID, n.Type, n.Payload, n.ReadAt, n.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range list {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
	}
	return nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*notifications.Notification, error) {
	query := `
		SELECT id, user_id, type, payload, read_at, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var result []*notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Payload, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return result, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
	`
	result, err := r.pool.Exec(ctx, query, time.Now(), notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// PostgresDeviceRepository implements notifications.DeviceRepository
type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{pool: pool}
}

func (r *PostgresDeviceRepository) UpsertDevice(ctx context.Context, userID uuid.UUID, token string) (*notifications.Device, error) {
	// Re-registering a known token hands it to the new owner.
	query := `
		INSERT INTO devices (id, user_id, expo_push_token, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (expo_push_token) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, expo_push_token, created_at
	`
	var device notifications.Device
	err := r.pool.QueryRow(ctx, query, uuid.New(), userID, token, time.Now()).Scan(
		&device.ID,
		&device.UserID,
		&device.ExpoPushToken,
		&device.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device: %w", err)
	}
	return &device, nil
}

func (r *PostgresDeviceRepository) ListTokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	query := `SELECT expo_push_token FROM devices WHERE user_id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}
	return tokens, nil
}

// PostgresAudienceRepository implements notifications.AudienceRepository
type PostgresAudienceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAudienceRepository(pool *pgxpool.Pool) *PostgresAudienceRepository {
	return &PostgresAudienceRepository{pool: pool}
}

func (r *PostgresAudienceRepository) ListActiveBuyerIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE role = 'buyer' AND status = 'active'`
	return r.queryIDs(ctx, query)
}

func (r *PostgresAudienceRepository) ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT buyer_id FROM bids WHERE auction_id = $1`
	return r.queryIDs(ctx, query, auctionID)
}

func (r *PostgresAudienceRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}
	return result, nil
}
