package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientCookie = "sf_client"
	clientIDKey  = "client_id"
	clientMaxAge = 60 * 60 * 24 * 365
)

// ClientMiddleware pins every browser to a stable client id carried in a
// cookie. Guest sessions, tokens and the cart all hang off that id.
func ClientMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, id, clientMaxAge, "/", "", secure, true)
		}

		c.Set(clientIDKey, id)
		c.Next()
	}
}

// ClientID returns the id set by ClientMiddleware, or "".
func ClientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}
