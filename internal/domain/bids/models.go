package bids

import (
	"time"

	"github.com/google/uuid"
)

// MaxBidsPerBuyer caps how many bids one buyer may place on one auction.
const MaxBidsPerBuyer = 2

// Bid is a buyer's offer on an auction, in minor units of the auction currency.
// IdxPerBuyer is 1-based and unique per (auction, buyer).
type Bid struct {
	ID          uuid.UUID `json:"id" db:"id"`
	AuctionID   uuid.UUID `json:"auction_id" db:"auction_id"`
	BuyerID     uuid.UUID `json:"buyer_id" db:"buyer_id"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	IdxPerBuyer int       `json:"idx_per_buyer" db:"idx_per_buyer"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// BuyerUsername is joined in on read paths for display purposes.
	BuyerUsername string `json:"buyer_username,omitempty" db:"buyer_username"`
}
