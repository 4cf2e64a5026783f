package handler

import (
	"net/http"
	"strconv"
	"strings"

	"garage-client/internal/auth"
	"garage-client/internal/middleware"
	"garage-client/internal/store"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	Store        *store.Store
	TokenConfig  auth.TokenConfig
	LoginLimiter *middleware.RateLimiter
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": []string{"email should not be empty", "password should not be empty"}})
		return
	}

	// Only attempts count; a throttled client can still use existing tokens.
	if h.LoginLimiter != nil && !h.LoginLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts"})
		return
	}

	user, ok := h.Store.Authenticate(body.Email, body.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(strconv.FormatInt(user.ID, 10), string(user.Role), h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Token creation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "user": user})
}
