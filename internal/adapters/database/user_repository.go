package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autobizz/autobet/internal/domain/users"
	pkgdb "github.com/autobizz/autobet/pkg/database"
)

// PostgresUserRepository implements users.UserRepository using pgx
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, tx pgx.Tx, user *users.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.CreatedAt,
	)
	if err != nil {
		// Concurrent registrations race past the existence check and land on
		// the unique constraints instead.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return users.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	query := userSelect + ` WHERE id = $1`
	return r.scanUser(ctx, r.pool, query, id)
}

func (r *PostgresUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*users.User, error) {
	query := userSelect + ` WHERE username = $1 OR lower(email) = lower($1)`
	return r.scanUser(ctx, r.pool, query, identifier)
}

// GetUserStatus returns the current status for id, or "" when no such user
// exists. The auth middleware calls this on every authenticated request.
func (r *PostgresUserRepository) GetUserStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM users WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user status: %w", err)
	}
	return status, nil
}

func (r *PostgresUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE lower(email) = lower($1) OR username = $2
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepository) ListUsers(ctx context.Context) ([]*users.User, error) {
	query := userSelect + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []*users.User
	for rows.Next() {
		var user users.User
		if err := scanUserRow(rows, &user); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return result, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, tx pgx.Tx, user *users.User) error {
	query := `
		UPDATE users
		SET email = $1, username = $2, password_hash = $3, role = $4, status = $5
		WHERE id = $6
	`
	result, err := tx.Exec(ctx, query,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

const userSelect = `
	SELECT id, email, username, password_hash, role, status, created_at
	FROM users
`

func (r *PostgresUserRepository) scanUser(ctx context.Context, db pkgdb.DBTX, query string, args ...any) (*users.User, error) {
	var user users.User
	err := db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func scanUserRow(rows pgx.Rows, user *users.User) error {
	return rows.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
	)
}
