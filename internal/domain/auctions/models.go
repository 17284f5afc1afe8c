package auctions

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s names a known auction status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusDraft, StatusActive, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

const (
	// AuctionWindow is how long an auction accepts bids once activated.
	AuctionWindow = 24 * time.Hour

	// MaxImages per auction listing.
	MaxImages = 8

	// DefaultPageSize caps listing responses.
	DefaultPageSize = 20
)

// Auction is a sellable vehicle listing. Prices are stored in minor units
// (cents) of the listing currency.
type Auction struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	SellerID           uuid.UUID `json:"seller_id" db:"seller_id"`
	Title              string    `json:"title" db:"title"`
	Description        string    `json:"description" db:"description"`
	MinPriceCents      int64     `json:"min_price_cents" db:"min_price_cents"`
	Currency           string    `json:"currency" db:"currency"`
	ImageURLs          []string  `json:"image_urls" db:"image_urls"`
	CarteGriseImageURL string    `json:"carte_grise_image_url" db:"carte_grise_image_url"`
	Status             Status    `json:"status" db:"status"`
	StartAt            time.Time `json:"start_at" db:"start_at"`
	EndAt              time.Time `json:"end_at" db:"end_at"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Ended reports whether the bidding window has passed.
func (a *Auction) Ended(now time.Time) bool {
	return !a.EndAt.IsZero() && !a.EndAt.After(now)
}
