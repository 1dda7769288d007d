// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/database"
	"maum-talk-go/pkg/log"
	"maum-talk-go/pkg/token"
)

// AdminHandler 负责处理管理端的 API 请求：参与者管理与 LLM 配置编辑。
type AdminHandler struct {
	participantService service.ParticipantService
	adminService       service.AdminService
	jwtManager         *token.JWTManager
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(participantService service.ParticipantService, adminService service.AdminService, jwtManager *token.JWTManager) *AdminHandler {
	return &AdminHandler{
		participantService: participantService,
		adminService:       adminService,
		jwtManager:         jwtManager,
	}
}

// actor 返回当前操作者的用户 ID，用于审计记录。
func actor(c *gin.Context) string {
	if p, exists := c.Get("participant"); exists {
		if participant, ok := p.(*model.Participant); ok {
			return participant.UserID
		}
	}
	return "unknown"
}

// AdminLoginRequest 定义了管理端登录 API 的请求体结构。
type AdminLoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理端登录请求，只对管理员分组的账号签发 JWT。
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("AdminLogin: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：用户 ID 和密码不能为空",
		})
		return
	}

	participant, err := h.participantService.Authenticate(req.UserID, req.Password)
	if err != nil {
		log.Warnf("AdminLogin: Authentication failed for '%s', error: %v", req.UserID, err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效的凭证",
		})
		return
	}
	if !participant.IsAdmin() {
		log.Warnf("AdminLogin: Non-admin '%s' attempted console login", req.UserID)
		c.JSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"message": "权限不足，需要管理员权限",
		})
		return
	}

	accessToken, err := h.jwtManager.GenerateToken(participant.UserID, participant.Name, participant.GroupType)
	if err != nil {
		log.Error("AdminLogin: Failed to generate access token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "签发 token 失败"})
		return
	}
	refreshToken, err := h.jwtManager.GenerateRefreshToken(participant.UserID, participant.Name, participant.GroupType)
	if err != nil {
		log.Error("AdminLogin: Failed to generate refresh token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "签发 token 失败"})
		return
	}

	log.Infof("Admin '%s' logged in successfully", participant.UserID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求，校验账号仍然存在且仍是管理员后签发新的 token 对。
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("RefreshToken: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：refreshToken 不能为空"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(req.RefreshToken)
	if err != nil {
		log.Warnf("RefreshToken: Invalid refresh token, error: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 refresh token"})
		return
	}

	participant, err := h.participantService.Get(claims.UserID)
	if err != nil || !participant.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 refresh token"})
		return
	}

	newAccessToken, err := h.jwtManager.GenerateToken(participant.UserID, participant.Name, participant.GroupType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "签发 token 失败"})
		return
	}
	newRefreshToken, err := h.jwtManager.GenerateRefreshToken(participant.UserID, participant.Name, participant.GroupType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "签发 token 失败"})
		return
	}

	log.Info("Token refreshed successfully")
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Token refreshed successfully",
		"data": gin.H{
			"token":        newAccessToken,
			"refreshToken": newRefreshToken,
		},
	})
}

// Logout 处理管理端登出，将当前 token 加入 Redis 黑名单直到其自然过期。
func (h *AdminHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err == nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := database.RDB.Set(context.Background(), "jwt:blacklist:"+tokenString, "1", ttl).Err(); err != nil {
				log.Error("Logout: Failed to blacklist token", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    http.StatusInternalServerError,
					"message": "登出失败",
				})
				return
			}
		}
	}

	log.Infof("Admin '%s' logged out successfully", actor(c))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登出成功",
	})
}

// ListParticipants 返回全部参与者及其会话统计。
func (h *AdminHandler) ListParticipants(c *gin.Context) {
	stats, err := h.participantService.ListWithStats()
	if err != nil {
		log.Error("ListParticipants: Failed to list participants", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询参与者列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": stats, "message": "success"})
}

// Summary 返回排除管理员账号后的整体统计。
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.participantService.Summary()
	if err != nil {
		log.Error("Summary: Failed to aggregate stats", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询汇总统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": summary, "message": "success"})
}

// CreateParticipantRequest 定义了创建参与者 API 的请求体结构。
type CreateParticipantRequest struct {
	UserID   string  `json:"userId" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Group    string  `json:"groupType" binding:"required"`
	Phone    *string `json:"phone"`
	Gender   *string `json:"gender"`
	Age      *int    `json:"age"`
}

// CreateParticipant 处理创建参与者的请求。
func (h *AdminHandler) CreateParticipant(c *gin.Context) {
	var req CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateParticipant: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：用户 ID、密码、姓名和分组不能为空",
		})
		return
	}

	participant, err := h.participantService.Create(service.CreateParticipantInput{
		UserID:   req.UserID,
		Password: req.Password,
		Name:     req.Name,
		Group:    req.Group,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Age:      req.Age,
	}, actor(c))
	if err != nil {
		log.Warnf("CreateParticipant: Failed for '%s', error: %v", req.UserID, err)
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrDuplicateUserID) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"code": status, "message": err.Error()})
		return
	}

	log.Infof("Participant '%s' created by '%s'", participant.UserID, actor(c))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Participant created successfully",
		"data":    participant,
	})
}

// UpdateParticipantRequest 定义了部分更新参与者 API 的请求体结构，nil 字段保持原值。
type UpdateParticipantRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
	Gender   *string `json:"gender"`
	Age      *int    `json:"age"`
	Status   *string `json:"status"`
}

// UpdateParticipant 处理更新参与者的请求。状态字段与其余字段分别更新。
func (h *AdminHandler) UpdateParticipant(c *gin.Context) {
	userID := c.Param("userId")

	var req UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateParticipant: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	err := h.participantService.Update(userID, service.UpdateParticipantInput{
		Name:     req.Name,
		Password: req.Password,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Age:      req.Age,
	}, actor(c))
	if err == nil && req.Status != nil {
		err = h.participantService.UpdateStatus(userID, *req.Status, actor(c))
	}
	if err != nil {
		log.Warnf("UpdateParticipant: Failed for '%s', error: %v", userID, err)
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrParticipantNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"code": status, "message": err.Error()})
		return
	}

	log.Infof("Participant '%s' updated by '%s'", userID, actor(c))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Participant updated successfully"})
}

// DeleteParticipant 处理删除参与者的请求，级联删除其全部会话与消息。
func (h *AdminHandler) DeleteParticipant(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.participantService.Delete(userID, actor(c)); err != nil {
		log.Warnf("DeleteParticipant: Failed for '%s', error: %v", userID, err)
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, service.ErrParticipantNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrAdminUndeletable):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"code": status, "message": err.Error()})
		return
	}

	log.Infof("Participant '%s' deleted by '%s'", userID, actor(c))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Participant deleted successfully"})
}

// GetLLMConfig 返回当前激活的 LLM 配置。
func (h *AdminHandler) GetLLMConfig(c *gin.Context) {
	cfg, err := h.adminService.ActiveConfig()
	if err != nil {
		if errors.Is(err, service.ErrNoActiveConfig) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "没有激活的配置"})
			return
		}
		log.Error("GetLLMConfig: Failed to load active config", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询配置失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": cfg, "message": "success"})
}

// UpdateLLMConfigRequest 定义了编辑激活配置 API 的请求体结构，nil 字段保持原值。
type UpdateLLMConfigRequest struct {
	Name             *string  `json:"name"`
	SystemPrompt     *string  `json:"systemPrompt"`
	Model            *string  `json:"model"`
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"maxTokens"`
	TopP             *float64 `json:"topP"`
	FrequencyPenalty *float64 `json:"frequencyPenalty"`
	PresencePenalty  *float64 `json:"presencePenalty"`
}

// UpdateLLMConfig 处理编辑激活配置的请求。
// 成功更新后配置版本号递增，进行中的对话在下一轮自动换用新配置。
func (h *AdminHandler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateLLMConfig: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	err := h.adminService.UpdateActiveConfig(c.Request.Context(), service.UpdateLLMConfigInput{
		Name:             req.Name,
		SystemPrompt:     req.SystemPrompt,
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}, actor(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyConfigEdit):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "没有需要更新的字段"})
		case errors.Is(err, service.ErrConfigNotChanged):
			// 没有行被实际修改：不算成功编辑，返回明确的 no-op 标记
			c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "配置未发生变化", "data": gin.H{"changed": false}})
		case errors.Is(err, service.ErrNoActiveConfig):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "没有激活的配置"})
		default:
			log.Error("UpdateLLMConfig: Failed to update config", err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "更新配置失败"})
		}
		return
	}

	log.Infof("LLM config updated by '%s'", actor(c))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "配置更新成功", "data": gin.H{"changed": true}})
}

// ListLLMConfigs 返回全部配置行（含历史快照），最新的在前。
func (h *AdminHandler) ListLLMConfigs(c *gin.Context) {
	configs, err := h.adminService.ListConfigs()
	if err != nil {
		log.Error("ListLLMConfigs: Failed to list configs", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询配置历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": configs, "message": "success"})
}
