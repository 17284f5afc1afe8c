package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tokenHeader = "Authorization"
	tokenPrefix = "Bearer "

	claimsContextKey = "auth_claims"
)

// StatusStore reports a user's current account status. An empty status means
// the account does not exist.
type StatusStore interface {
	GetUserStatus(ctx context.Context, userID uuid.UUID) (string, error)
}

// RequireAuth validates the bearer token and injects claims into the gin
// context. The account status is re-read from the store on every request, so
// a suspension takes effect before the access token expires. The status baked
// into the token is ignored.
func RequireAuth(signer *Signer, statuses StatusStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFromHeader(c, signer)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": http.StatusUnauthorized,
				"title":  "Unauthorized",
				"detail": "missing or invalid token",
			})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": http.StatusUnauthorized,
				"title":  "Unauthorized",
				"detail": "missing or invalid token",
			})
			return
		}

		status, err := statuses.GetUserStatus(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status": http.StatusInternalServerError,
				"title":  "Internal Server Error",
				"detail": "could not verify account status",
			})
			return
		}
		if status == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": http.StatusUnauthorized,
				"title":  "Unauthorized",
				"detail": "missing or invalid token",
			})
			return
		}
		if status == "suspended" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status": http.StatusForbidden,
				"title":  "Forbidden",
				"detail": "User account is suspended",
			})
			return
		}

		claims.Status = status
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// OptionalAuth injects claims when a valid bearer token is present but never
// rejects the request. Public listing endpoints use it for viewer context.
func OptionalAuth(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := claimsFromHeader(c, signer); ok && claims.Status != "suspended" {
			c.Set(claimsContextKey, claims)
		}
		c.Next()
	}
}

// RequireRole allows only the given roles. Must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": http.StatusUnauthorized,
				"title":  "Unauthorized",
				"detail": "missing or invalid token",
			})
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"status": http.StatusForbidden,
			"title":  "Forbidden",
			"detail": "Insufficient permissions",
		})
	}
}

func claimsFromHeader(c *gin.Context, signer *Signer) (*Claims, bool) {
	header := c.GetHeader(tokenHeader)
	if header == "" || !strings.HasPrefix(header, tokenPrefix) {
		return nil, false
	}

	claims, err := signer.ValidateToken(strings.TrimPrefix(header, tokenPrefix))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// GetClaims retrieves the token claims from the gin context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}

// UserID returns the authenticated user's id, if any.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
