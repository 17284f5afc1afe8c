package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/internal/domain/bids"
	"github.com/autobizz/autobet/internal/domain/users"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Identifier string `json:"username_or_email" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type inviteRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

type resetRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type updateUserRequest struct {
	Status *string `json:"status"`
	Role   *string `json:"role"`
}

type createAuctionRequest struct {
	Title              string   `json:"title" binding:"required"`
	Description        string   `json:"description" binding:"required"`
	MinPriceCents      int64    `json:"min_price_cents" binding:"required"`
	Currency           string   `json:"currency"`
	ImageURLs          []string `json:"image_urls"`
	CarteGriseImageURL string   `json:"carte_grise_image_url" binding:"required"`
}

type updateAuctionRequest struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	MinPriceCents      *int64    `json:"min_price_cents"`
	Currency           *string   `json:"currency"`
	ImageURLs          *[]string `json:"image_urls"`
	CarteGriseImageURL *string   `json:"carte_grise_image_url"`
}

type placeBidRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required"`
}

type registerDeviceRequest struct {
	ExpoPushToken string `json:"expo_push_token" binding:"required"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *users.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type bidResponse struct {
	ID            uuid.UUID `json:"id"`
	AuctionID     uuid.UUID `json:"auction_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	BuyerUsername string    `json:"buyer_username,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	IdxPerBuyer   int       `json:"idx_per_buyer"`
	CreatedAt     time.Time `json:"created_at"`
}

func toBidResponse(b *bids.Bid) bidResponse {
	return bidResponse{
		ID:            b.ID,
		AuctionID:     b.AuctionID,
		BuyerID:       b.BuyerID,
		BuyerUsername: b.BuyerUsername,
		AmountCents:   b.AmountCents,
		IdxPerBuyer:   b.IdxPerBuyer,
		CreatedAt:     b.CreatedAt,
	}
}

// auctionResponse is the listing preview and detail shape. BestBid and the
// viewer fields are filled from the auction's bids; Bids only on detail.
type auctionResponse struct {
	ID                 uuid.UUID     `json:"id"`
	SellerID           uuid.UUID     `json:"seller_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	MinPriceCents      int64         `json:"min_price_cents"`
	Currency           string        `json:"currency"`
	ImageURLs          []string      `json:"image_urls"`
	CarteGriseImageURL string        `json:"carte_grise_image_url"`
	Status             string        `json:"status"`
	StartAt            time.Time     `json:"start_at"`
	EndAt              time.Time     `json:"end_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	BestBid            *bidResponse  `json:"best_bid"`
	ViewerBid          *bidResponse  `json:"viewer_bid,omitempty"`
	ViewerHasBid       bool          `json:"viewer_has_bid"`
	Bids               []bidResponse `json:"bids,omitempty"`
}

// toAuctionResponse builds the preview. auctionBids must be ordered highest
// first; viewerID is uuid.Nil for anonymous requests.
func toAuctionResponse(a *auctions.Auction, auctionBids []*bids.Bid, viewerID uuid.UUID) auctionResponse {
	resp := auctionResponse{
		ID:                 a.ID,
		SellerID:           a.SellerID,
		Title:              a.Title,
		Description:        a.Description,
		MinPriceCents:      a.MinPriceCents,
		Currency:           a.Currency,
		ImageURLs:          a.ImageURLs,
		CarteGriseImageURL: a.CarteGriseImageURL,
		Status:             string(a.Status),
		StartAt:            a.StartAt,
		EndAt:              a.EndAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if resp.ImageURLs == nil {
		resp.ImageURLs = []string{}
	}

	for _, b := range auctionBids {
		if resp.BestBid == nil {
			br := toBidResponse(b)
			resp.BestBid = &br
		}
		if viewerID != uuid.Nil && b.BuyerID == viewerID {
			resp.ViewerHasBid = true
			if resp.ViewerBid == nil || b.AmountCents > resp.ViewerBid.AmountCents {
				br := toBidResponse(b)
				resp.ViewerBid = &br
			}
		}
	}
	return resp
}

type notificationResponse struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
}
