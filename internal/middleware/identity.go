package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	UserIDHeader     = "X-User-ID"
	OperatorIDHeader = "X-Operator-ID"
)

const (
	userIDKey     = "identity.user_id"
	operatorIDKey = "identity.operator_id"
)

// IdentityMiddleware copies the gateway identity headers into the context.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
			c.Set(userIDKey, userID)
		}
		if operatorID := strings.TrimSpace(c.GetHeader(OperatorIDHeader)); operatorID != "" {
			c.Set(operatorIDKey, operatorID)
		}
		c.Next()
	}
}

// ActorID returns the acting user, or nil when the request is anonymous.
func ActorID(c *gin.Context) *string {
	userID := c.GetString(userIDKey)
	if userID == "" {
		return nil
	}
	return &userID
}

// OperatorID returns the operator the request acts for, or "".
func OperatorID(c *gin.Context) string {
	return c.GetString(operatorIDKey)
}
