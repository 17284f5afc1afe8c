package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/internal/domain/bids"
	"github.com/autobizz/autobet/internal/domain/notifications"
	"github.com/autobizz/autobet/internal/domain/users"
)

// Problem is the JSON error envelope every handler returns.
type Problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func writeProblem(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Problem{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
	})
}

func writeBindError(c *gin.Context, err error) {
	writeProblem(c, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// writeError maps domain sentinel errors onto HTTP problems. Anything
// unrecognized is a 500 with the detail withheld.
func writeError(c *gin.Context, err error) {
	status, ok := statusForError(err)
	if !ok {
		_ = c.Error(err)
		writeProblem(c, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeProblem(c, status, err.Error())
}

func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, users.ErrInvalidInput),
		errors.Is(err, users.ErrNoUpdates),
		errors.Is(err, auctions.ErrMissingTitle),
		errors.Is(err, auctions.ErrMissingDescription),
		errors.Is(err, auctions.ErrInvalidPrice),
		errors.Is(err, auctions.ErrInvalidCurrency),
		errors.Is(err, auctions.ErrTooManyImages),
		errors.Is(err, auctions.ErrMissingCarteGrise),
		errors.Is(err, auctions.ErrInvalidStatusFilter),
		errors.Is(err, auctions.ErrNoUpdates),
		errors.Is(err, bids.ErrAuctionNotActive),
		errors.Is(err, bids.ErrAuctionClosed),
		errors.Is(err, bids.ErrBidLimitReached),
		errors.Is(err, bids.ErrBidBelowMinimum),
		errors.Is(err, bids.ErrBidNotHighest),
		errors.Is(err, bids.ErrInvalidBidAmount),
		errors.Is(err, notifications.ErrMissingPushToken):
		return http.StatusBadRequest, true

	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrInvalidToken):
		return http.StatusUnauthorized, true

	case errors.Is(err, users.ErrUserSuspended),
		errors.Is(err, users.ErrRoleRestricted),
		errors.Is(err, auctions.ErrNotOwner):
		return http.StatusForbidden, true

	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, auctions.ErrAuctionNotFound),
		errors.Is(err, bids.ErrAuctionNotFound),
		errors.Is(err, notifications.ErrNotificationNotFound):
		return http.StatusNotFound, true

	case errors.Is(err, users.ErrUserAlreadyExists):
		return http.StatusConflict, true
	}
	return 0, false
}
