package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printsync/backend/internal/interfaces/http/dto"
)

// WebhookSecretHeader carries the shared secret on provider webhook
// deliveries.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth verifies the shared webhook secret on incoming deliveries.
// An empty configured secret disables the check, for local development only.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("UNAUTHORIZED", "invalid webhook secret"))
			return
		}

		c.Next()
	}
}
