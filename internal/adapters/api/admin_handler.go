package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/users"
	"github.com/autobizz/autobet/pkg/auth"
)

// AdminHandler serves the /admin/users surface. Every route behind it already
// passed RequireRole("admin").
type AdminHandler struct {
	service *users.Service
}

func NewAdminHandler(service *users.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]userResponse, 0, len(list))
	for _, u := range list {
		result = append(result, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": result})
}

// CreateUser handles POST /admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	actorID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), actorID, req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// UpdateUser handles PATCH /admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	actorID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), actorID, userID, users.UserUpdates{
		Status: req.Status,
		Role:   req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
