package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avosk/litepress/config"
	"github.com/avosk/litepress/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// TokenCookieName carries the JWT for browser page flows; API clients use
	// the Authorization header instead.
	TokenCookieName = "litepress_token"
)

// Identity resolves the acting identity from a bearer header or the session
// cookie and stores it in the request context. It never rejects: anonymous
// requests pass through unmarked.
func Identity() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			if c, err := ctx.Cookie(TokenCookieName); err == nil {
				token = strings.TrimSpace(c)
			}
		}
		if token == "" || utils.IsTokenBlacklisted(token) {
			ctx.Next()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			ctx.Next()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// LoginRequired guards mutating page routes. Anonymous requests are redirected
// to the login path carrying the originally requested path in "next"; the
// ownership predicate downstream is only ever evaluated for authenticated
// actors.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := ctx.Get(ContextUserIDKey); ok {
			ctx.Next()
			return
		}
		ctx.Redirect(http.StatusFound, config.Get().LoginPath+"?next="+ctx.Request.URL.Path)
		ctx.Abort()
	}
}

// AuthRequired guards API routes: it answers 401 rather than redirecting.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := ctx.Get(ContextUserIDKey); !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// CurrentUser returns the acting identity stored by Identity.
func CurrentUser(ctx *gin.Context) (uint, string, bool) {
	v, exists := ctx.Get(ContextUserIDKey)
	if !exists {
		return 0, "", false
	}
	id, ok := v.(uint)
	if !ok {
		return 0, "", false
	}
	nameVal, _ := ctx.Get(ContextUsernameKey)
	username, _ := nameVal.(string)
	return id, username, true
}

func bearerToken(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
