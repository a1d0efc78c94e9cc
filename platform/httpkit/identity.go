package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity describes the authenticated caller extracted by AuthRequired.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// GetIdentity reads the caller identity from the gin context.
// Returns false when the request is unauthenticated.
func GetIdentity(c *gin.Context) (Identity, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Identity{}, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}

	return Identity{UserID: userID, Username: c.GetString(ContextUsernameKey)}, true
}

// MustGetIdentity reads the caller identity or aborts with 401.
// Returns nil after aborting; handlers must return immediately.
func MustGetIdentity(c *gin.Context) *Identity {
	identity, ok := GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	return &identity
}
