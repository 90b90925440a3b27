package middleware

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tradegate/signal-gateway/internal/auth"
	"github.com/tradegate/signal-gateway/internal/metrics"
	"github.com/tradegate/signal-gateway/internal/ratelimit"
	"github.com/tradegate/signal-gateway/internal/types"
	"github.com/tradegate/signal-gateway/pkg/response"
)

// HMACAuth verifies the request signature, timestamp window, and nonce before
// anything downstream runs. The raw body is restored for later binding. On
// success the credential's key id is stored in the context as "keyID".
func HMACAuth(service *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "unreadable request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		cred, err := service.Authenticate(auth.SignedRequest{
			KeyID:     c.GetHeader(auth.HeaderAPIKey),
			Timestamp: c.GetHeader(auth.HeaderTimestamp),
			Nonce:     c.GetHeader(auth.HeaderNonce),
			Signature: c.GetHeader(auth.HeaderSignature),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Body:      body,
		})
		if err != nil {
			metrics.AuthFailure(string(types.KindOf(err)))
			log.Warn().
				Str("key_id", c.GetHeader(auth.HeaderAPIKey)).
				Str("remote_addr", c.ClientIP()).
				Str("reason", string(types.KindOf(err))).
				Msg("request authentication failed")
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set("keyID", cred.KeyID)
		c.Next()
	}
}

// RateLimit bounds request rate per (credential, source address). It runs
// after HMACAuth so unauthenticated traffic cannot exhaust a victim's quota.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		credID := c.GetString("keyID")
		if credID == "" {
			credID = c.ClientIP()
		}

		retryAfter, allowed := limiter.Allow(credID, c.ClientIP())
		if !allowed {
			metrics.RateLimited()
			response.FromError(c, &types.GatewayError{
				Kind:       types.KindRateLimited,
				Message:    "rate limit exceeded",
				RetryAfter: retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth protects the admin surface. Tokens are issued by the auth token
// service; only requests bearing a valid token with the admin permission
// proceed.
func JWTAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
		if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(bearerToken[1])
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		if !hasPermission(claims, "admin") {
			response.Unauthorized(c, fmt.Sprintf("Missing required permission: %s", "admin"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("clientID", claims.ClientID)
		c.Next()
	}
}

func hasPermission(claims *auth.Claims, perm string) bool {
	for _, p := range claims.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
