package handler

import (
	"net/http"
	"strconv"
	"time"

	"garage-client/internal/middleware"
	"garage-client/internal/model"
	"garage-client/internal/store"
	"github.com/gin-gonic/gin"
)

// PushEvent is the realtime event carrying a new notification.
const PushEvent = "notification"

// Pusher delivers an event to every live connection of a user.
type Pusher interface {
	Emit(userID string, event string, payload any) int
}

type NotificationHandler struct {
	Store  *store.Store
	Pusher Pusher
	Now    func() time.Time
}

type createNotificationBody struct {
	UserID   int64          `json:"userId"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

func (h *NotificationHandler) List(c *gin.Context) {
	h.list(c, false)
}

func (h *NotificationHandler) Unread(c *gin.Context) {
	h.list(c, true)
}

func (h *NotificationHandler) list(c *gin.Context, unreadOnly bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.Store.ListNotifications(userID, unreadOnly)})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	if !h.Store.MarkNotificationRead(userID, id) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	if !h.Store.DeleteNotification(userID, id) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Create stores a notification and pushes it to the recipient's live
// connections. Without userId the caller is the recipient; addressing
// someone else needs staff role.
func (h *NotificationHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}

	var body createNotificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if body.Message == "" || body.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "message and type are required"})
		return
	}

	recipient := userID
	if body.UserID != 0 && body.UserID != userID {
		role := middleware.RoleFromContext(c)
		if role != model.RoleAdmin && role != model.RoleMechanic {
			c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}
		if _, exists := h.Store.GetUser(body.UserID); !exists {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		recipient = body.UserID
	}

	n := h.Store.AddNotification(recipient, model.Notification{
		Title:    body.Title,
		Message:  body.Message,
		Type:     body.Type,
		Metadata: body.Metadata,
	}, h.now())

	delivered := 0
	if h.Pusher != nil {
		delivered = h.Pusher.Emit(strconv.FormatInt(recipient, 10), PushEvent, n)
	}
	c.JSON(http.StatusCreated, gin.H{"data": n, "delivered": delivered})
}

func (h *NotificationHandler) target(c *gin.Context) (userID, id int64, ok bool) {
	userID, ok = middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return 0, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid notification id"})
		return 0, 0, false
	}
	return userID, id, true
}

func (h *NotificationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
