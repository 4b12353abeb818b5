package security

import (
	"net/http"
	"strings"

	errs "PairLink/tools/errs"
	jwtlib "PairLink/tools/security"

	"github.com/gin-gonic/gin"
)

// Context key the handlers read the authenticated user ID from.
const CtxUserIDKey = "userId"

type Options struct {
	JWT jwtlib.Options
}

// Middleware authenticates Authorization: Bearer tokens and stores the
// subject under CtxUserIDKey. Requests without a valid token are
// rejected with the NotLoggedIn code.
func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrNotLoggedIn)
			return
		}

		userID, err := jwtlib.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrNotLoggedIn.WithDetail("invalid token"))
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user from the gin context; empty when
// the middleware did not run.
func UserID(c *gin.Context) string {
	v, _ := c.Get(CtxUserIDKey)
	s, _ := v.(string)
	return s
}
