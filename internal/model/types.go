package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMechanic Role = "MECHANIC"
	RoleClient   Role = "CLIENT"
)

// ParseRole accepts the backend spelling in any case. Unknown values yield "".
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleMechanic:
		return RoleMechanic
	case RoleClient:
		return RoleClient
	default:
		return ""
	}
}

type UserProfile struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	Phone          string `json:"phone,omitempty"`
	EmailConfirmed bool   `json:"isEmailConfirmed,omitempty"`
	Locked         bool   `json:"isLocked,omitempty"`
}

type SessionState string

const (
	SessionAnonymous      SessionState = "anonymous"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"
)

type Session struct {
	Token string
	User  *UserProfile
	State SessionState
}

func (s Session) Authenticated() bool { return s.Token != "" }

type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
)

// Notification is both the persisted record returned by the backend and the
// payload of the "notification" push event. ID is zero when the server did
// not assign one.
type Notification struct {
	ID        int64          `json:"id,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Toast struct {
	ID        int64
	Message   string
	Severity  Severity
	ExpiresAt time.Time
}

type RouteRequirement struct {
	RequiresAuth bool `yaml:"requiresAuth"`
	Role         Role `yaml:"role,omitempty"`
}

type LoginResult struct {
	Token string      `json:"access_token"`
	User  UserProfile `json:"user"`
}
