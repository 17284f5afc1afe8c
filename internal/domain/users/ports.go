package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	CreateUser(ctx context.Context, tx pgx.Tx, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetUserByIdentifier resolves a username or email (emails are matched
	// case-insensitively). Returns nil when no user matches.
	GetUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	// ExistsByEmailOrUsername reports whether either value is already taken.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, tx pgx.Tx, user *User) error
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash []byte) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tx pgx.Tx, tokenHash []byte) error
	// RevokeAllUserTokens is useful for "logout from all devices" functionality
	RevokeAllUserTokens(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

type AuditRepository interface {
	RecordEntry(ctx context.Context, tx pgx.Tx, entry *AuditEntry) error
}
