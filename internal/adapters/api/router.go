package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/autobizz/autobet/pkg/auth"
)

// RouterConfig bundles the handlers and auth wiring for the HTTP surface.
type RouterConfig struct {
	Signer              *auth.Signer
	Statuses            auth.StatusStore
	AuthHandler         *AuthHandler
	AuctionHandler      *AuctionHandler
	AdminHandler        *AdminHandler
	NotificationHandler *NotificationHandler
	Logger              *slog.Logger
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(cfg.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/time", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"server_time": time.Now().UTC().Format(time.RFC3339),
		})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", cfg.AuthHandler.Register)
		authGroup.POST("/login", cfg.AuthHandler.Login)
		authGroup.POST("/refresh", cfg.AuthHandler.Refresh)
		authGroup.POST("/logout", cfg.AuthHandler.Logout)
		authGroup.GET("/me", auth.RequireAuth(cfg.Signer, cfg.Statuses), cfg.AuthHandler.Me)
		authGroup.POST("/invite", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("admin"), cfg.AuthHandler.Invite)
		authGroup.POST("/reset", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("admin"), cfg.AuthHandler.Reset)
	}

	auctionGroup := router.Group("/auctions")
	{
		auctionGroup.GET("", auth.OptionalAuth(cfg.Signer), cfg.AuctionHandler.List)
		auctionGroup.POST("", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("seller", "admin"), cfg.AuctionHandler.Create)
		auctionGroup.GET("/mine", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("seller", "admin"), cfg.AuctionHandler.Mine)
		auctionGroup.GET("/manage", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("admin"), cfg.AuctionHandler.Manage)
		auctionGroup.GET("/:id", auth.OptionalAuth(cfg.Signer), cfg.AuctionHandler.Get)
		auctionGroup.PATCH("/:id", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("seller", "admin"), cfg.AuctionHandler.Update)
		auctionGroup.DELETE("/:id", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("seller", "admin"), cfg.AuctionHandler.Delete)
		auctionGroup.POST("/:id/bids", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("buyer"), cfg.AuctionHandler.PlaceBid)
	}

	router.POST("/devices", auth.RequireAuth(cfg.Signer, cfg.Statuses), cfg.NotificationHandler.RegisterDevice)

	notificationGroup := router.Group("/notifications", auth.RequireAuth(cfg.Signer, cfg.Statuses))
	{
		notificationGroup.GET("", cfg.NotificationHandler.List)
		notificationGroup.POST("/:id/read", cfg.NotificationHandler.MarkRead)
	}

	adminGroup := router.Group("/admin", auth.RequireAuth(cfg.Signer, cfg.Statuses), auth.RequireRole("admin"))
	{
		adminGroup.GET("/users", cfg.AdminHandler.ListUsers)
		adminGroup.POST("/users", cfg.AdminHandler.CreateUser)
		adminGroup.PATCH("/users/:id", cfg.AdminHandler.UpdateUser)
	}

	return router
}
