package notifications

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeNewAuction Type = "new_auction"
	TypeResult     Type = "result"
)

// Notification is an in-app notification row. Payload is free-form JSON the
// clients interpret per type.
type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Type      Type           `json:"type" db:"type"`
	Payload   map[string]any `json:"payload" db:"payload"`
	ReadAt    *time.Time     `json:"read_at" db:"read_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Device is a registered Expo push target.
type Device struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	ExpoPushToken string    `json:"expo_push_token" db:"expo_push_token"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
