package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"garage-client/internal/auth"
	"garage-client/internal/model"
	"github.com/gin-gonic/gin"
)

const (
	userIDContextKey = "userID"
	roleContextKey   = "role"
)

func UserIDFromContext(c *gin.Context) (int64, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	value, ok := userID.(int64)
	return value, ok && value > 0
}

func RoleFromContext(c *gin.Context) model.Role {
	role, _ := c.Get(roleContextKey)
	value, _ := role.(model.Role)
	return value
}

// RequireAuth accepts a bearer JWT issued by the login endpoint. Any failure
// answers 401 so the client treats the credential as lost.
func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
			return
		}
		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
			return
		}

		c.Set(userIDContextKey, userID)
		c.Set(roleContextKey, model.ParseRole(claims.Role))
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleFromContext(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
	}
}
