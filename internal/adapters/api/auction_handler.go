package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/internal/domain/bids"
	"github.com/autobizz/autobet/internal/domain/users"
	"github.com/autobizz/autobet/pkg/auth"
)

type AuctionHandler struct {
	auctionService *auctions.Service
	bidService     *bids.Service
}

func NewAuctionHandler(auctionService *auctions.Service, bidService *bids.Service) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		bidService:     bidService,
	}
}

// Create handles POST /auctions (seller or admin)
func (h *AuctionHandler) Create(c *gin.Context) {
	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	sellerID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	auction, err := h.auctionService.CreateAuction(c.Request.Context(), auctions.CreateAuctionCommand{
		SellerID:           sellerID,
		Title:              req.Title,
		Description:        req.Description,
		MinPriceCents:      req.MinPriceCents,
		Currency:           req.Currency,
		ImageURLs:          req.ImageURLs,
		CarteGriseImageURL: req.CarteGriseImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuctionResponse(auction, nil, uuid.Nil))
}

// List handles GET /auctions (public, viewer-aware via optional auth)
func (h *AuctionHandler) List(c *gin.Context) {
	q, ok := parseListQuery(c)
	if !ok {
		return
	}

	viewerID, _ := auth.UserID(c)

	var list []*auctions.Auction
	var err error
	switch c.Query("scope") {
	case "":
		list, err = h.auctionService.ListAuctions(c.Request.Context(), q)
	case "participating":
		claims, ok := auth.GetClaims(c)
		if !ok {
			writeProblem(c, http.StatusUnauthorized, "scope=participating requires authentication")
			return
		}
		if claims.Role != string(users.RoleBuyer) {
			writeProblem(c, http.StatusForbidden, "scope=participating is only available to buyers")
			return
		}
		list, err = h.auctionService.ListParticipating(c.Request.Context(), viewerID, q)
	default:
		writeProblem(c, http.StatusBadRequest, "invalid scope")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": h.previews(c, list, viewerID)})
}

// Get handles GET /auctions/:id (public, detail with bids)
func (h *AuctionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid auction id")
		return
	}

	auction, err := h.auctionService.GetAuction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	auctionBids, err := h.bidService.GetBidsForAuction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	viewerID, _ := auth.UserID(c)
	resp := toAuctionResponse(auction, auctionBids, viewerID)
	resp.Bids = make([]bidResponse, 0, len(auctionBids))
	for _, b := range auctionBids {
		resp.Bids = append(resp.Bids, toBidResponse(b))
	}

	c.JSON(http.StatusOK, resp)
}

// Update handles PATCH /auctions/:id (owning seller or admin)
func (h *AuctionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req updateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	claims, actorID, ok := actor(c)
	if !ok {
		return
	}

	auction, err := h.auctionService.UpdateAuction(c.Request.Context(), auctions.UpdateAuctionCommand{
		AuctionID:          id,
		ActorID:            actorID,
		ActorRole:          users.Role(claims.Role),
		Title:              req.Title,
		Description:        req.Description,
		MinPriceCents:      req.MinPriceCents,
		Currency:           req.Currency,
		ImageURLs:          req.ImageURLs,
		CarteGriseImageURL: req.CarteGriseImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuctionResponse(auction, nil, uuid.Nil))
}

// Delete handles DELETE /auctions/:id (owning seller or admin)
func (h *AuctionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid auction id")
		return
	}

	claims, actorID, ok := actor(c)
	if !ok {
		return
	}

	if err := h.auctionService.DeleteAuction(c.Request.Context(), actorID, users.Role(claims.Role), id); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Mine handles GET /auctions/mine (seller or admin, own listings)
func (h *AuctionHandler) Mine(c *gin.Context) {
	sellerID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	list, err := h.auctionService.ListBySeller(c.Request.Context(), sellerID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": h.previews(c, list, sellerID)})
}

// Manage handles GET /auctions/manage (admin, every listing)
func (h *AuctionHandler) Manage(c *gin.Context) {
	viewerID, _ := auth.UserID(c)

	list, err := h.auctionService.ListAll(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": h.previews(c, list, viewerID)})
}

// PlaceBid handles POST /auctions/:id/bids (buyer only)
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	buyerID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	bid, err := h.bidService.PlaceBid(c.Request.Context(), bids.PlaceBidCommand{
		AuctionID:   id,
		BuyerID:     buyerID,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBidResponse(bid))
}

// previews attaches best/viewer bid context to each auction in one query.
func (h *AuctionHandler) previews(c *gin.Context, list []*auctions.Auction, viewerID uuid.UUID) []auctionResponse {
	ids := make([]uuid.UUID, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}

	byAuction, err := h.bidService.GetBidsForAuctions(c.Request.Context(), ids)
	if err != nil {
		// Previews degrade to listings without bid context
		byAuction = map[uuid.UUID][]*bids.Bid{}
	}

	result := make([]auctionResponse, 0, len(list))
	for _, a := range list {
		result = append(result, toAuctionResponse(a, byAuction[a.ID], viewerID))
	}
	return result
}

func parseListQuery(c *gin.Context) (auctions.ListQuery, bool) {
	q := auctions.ListQuery{
		Status: c.Query("status"),
		Sort:   c.Query("sort"),
	}

	if raw := c.Query("created_after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeProblem(c, http.StatusBadRequest, "created_after must be an RFC3339 timestamp")
			return q, false
		}
		q.CreatedAfter = &ts
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeProblem(c, http.StatusBadRequest, "limit must be an integer")
			return q, false
		}
		q.Limit = limit
	}

	return q, true
}

// actor extracts the authenticated claims and user id, writing a 401 when
// either is missing.
func actor(c *gin.Context) (*auth.Claims, uuid.UUID, bool) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return nil, uuid.Nil, false
	}
	actorID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return nil, uuid.Nil, false
	}
	return claims, actorID, true
}
