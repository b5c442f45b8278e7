package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
)

const (
	UserIDKey = "user_id"
	TokenKey  = "token"
)

// SessionKey is the cache key that marks a login token as active.
func SessionKey(token string) string { return "session:" + token }

// TokenFromRequest reads the credential from the Authorization header, either
// "Bearer <jwt>" or the bare token. When allowQuery is set the "token" query
// parameter is accepted as well, for clients such as EventSource that cannot
// set headers.
func TokenFromRequest(c *gin.Context, allowQuery bool) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		if !strings.Contains(header, " ") {
			return header
		}
		return ""
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// authenticate verifies token and its session, returning the user ID.
func authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (int64, string) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return 0, "invalid token"
	}
	// Check session still valid in cache.
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(token))
	if err != nil || !exists {
		return 0, "session expired"
	}
	return claims.UserID, ""
}

func auth(sec config.SecurityConfig, c cache.Cache, allowQuery bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := TokenFromRequest(ctx, allowQuery)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		userID, reason := authenticate(ctx.Request.Context(), sec, c, token)
		if reason != "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}
		ctx.Set(UserIDKey, userID)
		ctx.Set(TokenKey, token)
		ctx.Next()
	}
}

// Auth validates the login token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return auth(sec, c, false)
}

// StreamAuth is Auth that also accepts the token as a query parameter.
func StreamAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return auth(sec, c, true)
}

// OptionalAuth identifies the caller when a valid token is present and lets
// the request through either way.
func OptionalAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := TokenFromRequest(ctx, false); token != "" {
			if userID, reason := authenticate(ctx.Request.Context(), sec, c, token); reason == "" {
				ctx.Set(UserIDKey, userID)
				ctx.Set(TokenKey, token)
			}
		}
		ctx.Next()
	}
}

// GetUserID retrieves the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetToken returns the token the request was authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
