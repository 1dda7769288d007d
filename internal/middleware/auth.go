// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/database"
	"maum-talk-go/pkg/token"
)

// AuthMiddleware 创建一个 Gin 中间件，用于管理端的 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，检查黑名单后将用户信息存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, participantService service.ParticipantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 Authorization 请求头中获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 通常以 "Bearer <token>" 的形式提供，我们需要提取出 token 本身
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 已登出的 token 存在于 Redis 黑名单中，不再放行
		blacklisted, err := database.RDB.Exists(context.Background(), "jwt:blacklist:"+tokenString).Result()
		if err == nil && blacklisted > 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token 已失效，请重新登录"})
			return
		}

		// 使用 claims 中的用户 ID 从数据库获取完整的参与者信息
		participant, err := participantService.Get(claims.UserID)
		if err != nil {
			// 如果根据 token 中的用户信息无法找到用户，说明该用户可能已被删除
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
			return
		}

		// 将完整的 Participant 对象存储在 context 中，供后续处理函数使用
		c.Set("participant", participant)
		c.Set("claims", claims)

		c.Next()
	}
}

// AdminAuthMiddleware 检查当前用户是否属于管理员分组。
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 AuthMiddleware 设置的上下文中获取 participant 对象
		p, exists := c.Get("participant")
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
			return
		}

		currentUser, ok := p.(*model.Participant)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
			return
		}

		if !currentUser.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足，需要管理员权限"})
			return
		}

		c.Next()
	}
}
