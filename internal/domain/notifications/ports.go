package notifications

import (
	"context"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	CreateNotifications(ctx context.Context, list []*Notification) error
	// ListByUser returns the user's notifications newest first; unreadOnly
	// drops already-read rows.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*Notification, error)
	// MarkRead stamps read_at. Returns false when the notification does not
	// exist or belongs to another user. Idempotent for already-read rows.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
}

type DeviceRepository interface {
	// UpsertDevice registers a push token, re-assigning it to the given user
	// when the token is already known.
	UpsertDevice(ctx context.Context, userID uuid.UUID, token string) (*Device, error)
	// ListTokensForUsers returns every push token registered by the users.
	ListTokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
}

// AudienceRepository resolves notification recipients.
type AudienceRepository interface {
	// ListActiveBuyerIDs returns all active users with the buyer role.
	ListActiveBuyerIDs(ctx context.Context) ([]uuid.UUID, error)
	// ListBidderIDs returns the distinct buyers who bid on an auction.
	ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)
}
