package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CtxAuthKey holds the bearer token found on the request, if any.
const CtxAuthKey = "authorization"

type Options struct {
	// QueryParam is copied into the Authorization header when the header is absent.
	// Browsers cannot set headers on websocket handshakes.
	QueryParam string // 默认 "access_token"
	Required   bool   // 缺少 token 时直接 401
}

func DefaultOptions() *Options {
	return &Options{QueryParam: "access_token"}
}

// Middleware extracts "Authorization: Bearer <token>" into the gin context under CtxAuthKey.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" && opts.QueryParam != "" {
			if t := strings.TrimSpace(c.Query(opts.QueryParam)); t != "" {
				c.Request.Header.Set("Authorization", "Bearer "+t)
			}
		}

		token := BearerToken(c.GetHeader("Authorization"))
		if token != "" {
			c.Set(CtxAuthKey, token)
		}

		if token == "" && opts.Required {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// BearerToken returns the token of an "Authorization: Bearer xxx" value, or "".
func BearerToken(authz string) string {
	authz = strings.TrimSpace(authz)
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}

// TokenFrom reads the token stored by Middleware.
func TokenFrom(c *gin.Context) string {
	return c.GetString(CtxAuthKey)
}
