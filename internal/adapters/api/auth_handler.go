package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autobizz/autobet/internal/domain/users"
	"github.com/autobizz/autobet/pkg/auth"
)

type AuthHandler struct {
	service *users.Service
}

func NewAuthHandler(service *users.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, access, refresh, err := h.service.Login(
		c.Request.Context(),
		req.Identifier,
		req.Password,
		c.Request.UserAgent(),
		c.ClientIP(),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(user),
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	access, refresh, err := h.service.Refresh(
		c.Request.Context(),
		req.RefreshToken,
		c.Request.UserAgent(),
		c.ClientIP(),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// Invite handles POST /auth/invite (admin only)
func (h *AuthHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	actorID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	if err := h.service.RecordInvite(c.Request.Context(), actorID, req.Email, req.Role); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"invited": req.Email})
}

// Reset handles POST /auth/reset (admin only)
func (h *AuthHandler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	actorID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	if err := h.service.RecordPasswordReset(c.Request.Context(), actorID, req.UserID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"user_id": req.UserID})
}
