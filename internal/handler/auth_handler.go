// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"maum-talk-go/internal/config"
	"maum-talk-go/internal/middleware"
	"maum-talk-go/internal/model"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/log"
)

// AuthHandler 负责处理参与者端认证相关的 API 请求。
type AuthHandler struct {
	participantService service.ParticipantService
	sessionService     service.SessionService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(participantService service.ParticipantService, sessionService service.SessionService) *AuthHandler {
	return &AuthHandler{
		participantService: participantService,
		sessionService:     sessionService,
	}
}

// LoginRequest 定义了参与者登录 API 的请求体结构。
type LoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// setSessionCookie 写入会话令牌 Cookie，有效期由配置决定。
func setSessionCookie(c *gin.Context, tokenString string) {
	maxAge := config.Conf.Session.CookieDays * 24 * 3600
	c.SetCookie(middleware.SessionCookieName, tokenString, maxAge, "/", "", false, true)
}

// Login 处理参与者登录请求。
// 认证通过后复用最近访问的活跃会话，没有则开启新会话，并下发会话令牌。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "아이디와 비밀번호를 입력해 주세요.",
		})
		return
	}

	participant, err := h.participantService.Authenticate(req.UserID, req.Password)
	if err != nil {
		log.Warnf("Login: Authentication failed for '%s', error: %v", req.UserID, err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "아이디 또는 비밀번호가 올바르지 않습니다.",
		})
		return
	}

	session, err := h.sessionService.CreateOrResume(participant.UserID)
	if err != nil {
		log.Error("Login: Failed to create or resume session", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "세션 생성에 실패했습니다.",
		})
		return
	}

	setSessionCookie(c, session.SessionToken)

	log.Infof("Participant '%s' logged in, session %s (count %d)", participant.UserID, session.SessionID, session.SessionCount)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"sessionToken": session.SessionToken,
			"sessionId":    session.SessionID,
			"sessionCount": session.SessionCount,
			"participant": gin.H{
				"userId":       participant.UserID,
				"name":         participant.Name,
				"groupType":    participant.GroupType,
				"sessionLimit": participant.SessionLimit,
			},
		},
	})
}

// Resume 通过会话令牌恢复既有会话。
// 令牌来自 Cookie 或查询参数，使参与者刷新页面后回到原对话。
func (h *AuthHandler) Resume(c *gin.Context) {
	tokenString, _ := c.Cookie(middleware.SessionCookieName)
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "세션 정보가 없습니다. 다시 로그인해 주세요.",
		})
		return
	}

	resolved, err := h.sessionService.Resolve(tokenString)
	if err != nil {
		if !errors.Is(err, service.ErrSessionInvalid) {
			log.Error("Resume: Failed to resolve session", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "세션이 만료되었습니다. 다시 로그인해 주세요.",
		})
		return
	}

	// 令牌续期
	setSessionCookie(c, resolved.Session.SessionToken)

	log.Infof("Participant '%s' resumed session %s", resolved.Participant.UserID, resolved.Session.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"sessionToken": resolved.Session.SessionToken,
			"sessionId":    resolved.Session.SessionID,
			"sessionCount": resolved.Session.SessionCount,
			"participant": gin.H{
				"userId":       resolved.Participant.UserID,
				"name":         resolved.Participant.Name,
				"groupType":    resolved.Participant.GroupType,
				"sessionLimit": resolved.Participant.SessionLimit,
			},
		},
	})
}

// Logout 结束当前会话并清除 Cookie。
// 会话由 SessionAuthMiddleware 注入到上下文中。
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionValue, exists := c.Get("session")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取会话信息"})
		return
	}
	session, ok := sessionValue.(*model.Session)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "会话数据类型错误"})
		return
	}

	if err := h.sessionService.End(session.SessionID); err != nil {
		log.Error("Logout: Failed to end session", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "로그아웃에 실패했습니다.",
		})
		return
	}

	// 清除会话 Cookie
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)

	log.Infof("Session %s ended by participant logout", session.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "로그아웃되었습니다.",
	})
}
