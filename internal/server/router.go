// Package server assembles the development backend: REST routes, login
// throttling and the Socket.IO push endpoint.
package server

import (
	"log/slog"
	"strconv"
	"time"

	"garage-client/internal/auth"
	"garage-client/internal/handler"
	"garage-client/internal/middleware"
	"garage-client/internal/socketio"
	"garage-client/internal/store"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Logger      *slog.Logger
	// LoginLimit caps login attempts per client IP per minute. Zero means 10.
	LoginLimit int
}

// Backend is the router plus the push server it serves, so callers can emit
// events and release the limiter.
type Backend struct {
	Router  *gin.Engine
	Sockets *socketio.Server
	limiter *middleware.RateLimiter
}

func (b *Backend) Close() {
	b.limiter.Stop()
}

func NewBackend(deps Deps) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.LoginLimit <= 0 {
		deps.LoginLimit = 10
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	sockets := socketio.NewServer(socketio.ServerOptions{
		Verify: func(token string) (string, error) {
			claims, err := auth.VerifyToken(token, deps.TokenConfig)
			if err != nil {
				return "", err
			}
			if _, err := strconv.ParseInt(claims.UserID, 10, 64); err != nil {
				return "", err
			}
			return claims.UserID, nil
		},
		Logger: deps.Logger,
	})
	r.GET(socketio.DefaultPath, gin.WrapH(sockets))

	loginLimiter := middleware.NewRateLimiter(deps.LoginLimit, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, LoginLimiter: loginLimiter}
	r.POST("/auth/login", authHandler.Login)

	protected := r.Group("/")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.GET("/users/me", userHandler.Me)

	notificationHandler := &handler.NotificationHandler{Store: deps.Store, Pusher: sockets}
	protected.GET("/notifications", notificationHandler.List)
	protected.GET("/notifications/unread", notificationHandler.Unread)
	protected.POST("/notifications", notificationHandler.Create)
	protected.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
	protected.DELETE("/notifications/:id", notificationHandler.Delete)

	return &Backend{Router: r, Sockets: sockets, limiter: loginLimiter}
}
