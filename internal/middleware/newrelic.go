package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributesMiddleware annotates the New Relic transaction started by
// nrgin with the acting identity, and reports errors recorded by handlers.
// It must run after nrgin.Middleware and IdentityMiddleware.
func NewRelicAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if operatorID := OperatorID(c); operatorID != "" {
			txn.AddAttribute("operator_id", operatorID)
		}
		if actorID := ActorID(c); actorID != nil {
			txn.AddAttribute("user_id", *actorID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
