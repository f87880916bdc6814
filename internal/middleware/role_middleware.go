package middleware

import (
	"context"
	"net/http"

	"go-surplus-storefront/internal/auth"
	"go-surplus-storefront/internal/notify"
	"go-surplus-storefront/internal/pkg/apperror"
	"go-surplus-storefront/internal/pkg/logger"
	"go-surplus-storefront/internal/pkg/response"
	"go-surplus-storefront/internal/roleguard"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const userKey = "user"

// Subject is who a request acts for: a key shared by all requests of the
// same client, its auth context and where notices go.
type Subject struct {
	Key      string
	Identity roleguard.Identity
	Notifier notify.Notifier
}

type SubjectFunc func(c *gin.Context) Subject

// RequireRole lets the request through only when the caller's active role
// is role. Concurrent requests of one client share a single verification.
func RequireRole(role auth.Role, subject SubjectFunc, l ...*zap.Logger) gin.HandlerFunc {
	var group singleflight.Group
	log := logger.Named("middleware.role", l...)

	return func(c *gin.Context) {
		s := subject(c)
		ctx := context.WithoutCancel(c.Request.Context())

		v, _, shared := group.Do(s.Key+"|"+string(role), func() (any, error) {
			g := roleguard.New(role, s.Identity, roleguard.WithNotifier(s.Notifier), roleguard.WithLogger(log))
			return g.Evaluate(ctx), nil
		})
		d := v.(roleguard.Decision)

		log.Debug("role checked",
			zap.String("required", string(role)),
			zap.Stringer("state", d.State),
			zap.Bool("shared", shared),
		)

		switch d.State {
		case roleguard.Authorized:
			c.Set(userKey, d.User)
			c.Next()
		case roleguard.Unauthenticated:
			response.Error(c, http.StatusUnauthorized, apperror.CodeUnauthorized, d.Notice, gin.H{"redirect": d.Redirect})
			c.Abort()
		default:
			response.Error(c, http.StatusForbidden, apperror.CodeForbidden, d.Notice, gin.H{"redirect": d.Redirect})
			c.Abort()
		}
	}
}

// CurrentUser returns the user RequireRole authorized.
func CurrentUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*auth.User)
	return u, ok && u != nil
}
