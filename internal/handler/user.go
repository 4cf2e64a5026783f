package handler

import (
	"net/http"

	"garage-client/internal/middleware"
	"garage-client/internal/store"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Store *store.Store
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}

	user, ok := h.Store.GetUser(userID)
	if !ok {
		// Token outlived its account.
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User no longer exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}
