package middleware

import (
	"context"
	"strings"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "auth.claims"

// RevocationChecker reports whether a token id has been revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Auth requires a valid bearer token and stores its claims on the context.
func Auth(issuer *security.TokenIssuer, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, errutil.Unauthorized("missing bearer token", nil))
			return
		}

		claims, err := issuer.Parse(raw)
		if err != nil {
			abort(c, errutil.Unauthorized("invalid or expired token", err))
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				zap.L().Warn("failed to check token revocation", zap.Error(err))
			}
			if revoked {
				abort(c, errutil.Unauthorized("session has been revoked", nil))
				return
			}
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// EventSource cannot set headers.
	return c.Query("access_token")
}

// Claims returns the authenticated session, or nil outside Auth.
func Claims(c *gin.Context) *security.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.Claims)
	return claims
}

// Token returns the raw bearer token of the request.
func Token(c *gin.Context) string {
	return bearerToken(c)
}

// abort stops the chain with err. The error middleware renders it.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
