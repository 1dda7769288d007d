// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maum-talk-go/internal/service"
)

// SessionCookieName 是保存会话令牌的 Cookie 名称。
const SessionCookieName = "session_token"

// extractSessionToken 按 Authorization 头、Cookie、查询参数的顺序提取会话令牌。
func extractSessionToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// SessionAuthMiddleware 创建一个 Gin 中间件，用于参与者的会话令牌认证。
// 令牌是不透明的随机串，需要在数据库中解析出对应的参与者与会话。
func SessionAuthMiddleware(sessionService service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractSessionToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含会话令牌"})
			return
		}

		resolved, err := sessionService.Resolve(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "会话已过期或无效"})
			return
		}

		// 将参与者与会话存入 context，供后续处理函数使用
		c.Set("participant", resolved.Participant)
		c.Set("session", resolved.Session)

		c.Next()
	}
}
