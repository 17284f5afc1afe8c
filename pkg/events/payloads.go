package events

import "time"

// Event types double as routing keys on the auction.events exchange.
const (
	TypeAuctionCreated = "auction.created"
	TypeBidPlaced      = "auction.bid_placed"
	TypeAuctionClosed  = "auction.closed"
)

// AuctionCreated is emitted when a seller publishes a new auction.
type AuctionCreated struct {
	AuctionID string    `json:"auction_id"`
	SellerID  string    `json:"seller_id"`
	Title     string    `json:"title"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// BidPlaced is emitted when a buyer places a bid on an auction.
type BidPlaced struct {
	BidID       string    `json:"bid_id"`
	AuctionID   string    `json:"auction_id"`
	SellerID    string    `json:"seller_id"`
	BuyerID     string    `json:"buyer_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuctionClosed is emitted by the expiry sweep when an auction window ends.
type AuctionClosed struct {
	AuctionID string    `json:"auction_id"`
	SellerID  string    `json:"seller_id"`
	Title     string    `json:"title"`
	ClosedAt  time.Time `json:"closed_at"`
}
