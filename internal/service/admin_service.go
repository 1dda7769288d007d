package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/kafka"
	"maum-talk-go/pkg/log"
)

// 配置编辑相关的业务错误。
var (
	ErrNoActiveConfig   = errors.New("no active llm config")
	ErrConfigNotChanged = errors.New("no config row was modified")
	ErrEmptyConfigEdit  = errors.New("config update contains no fields")
)

// UpdateLLMConfigInput 是配置编辑的字段集合，nil 表示保持原值。
type UpdateLLMConfigInput struct {
	Name             *string
	SystemPrompt     *string
	Model            *string
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// AdminService 接口定义了管理端 LLM 配置编辑的业务操作。
type AdminService interface {
	ActiveConfig() (*model.LLMConfig, error)
	// UpdateActiveConfig 更新激活配置。只有确实有行被修改才算成功，
	// 成功后递增配置版本号，使已有对话链在下次调用前重建。
	UpdateActiveConfig(ctx context.Context, input UpdateLLMConfigInput, actor string) error
	// ListConfigs 返回全部配置行（含历史快照），最新的在前。
	ListConfigs() ([]model.LLMConfig, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	configRepo   repository.LLMConfigRepository
	signal       ConfigSignal
	publishAudit AuditPublisher
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(configRepo repository.LLMConfigRepository, signal ConfigSignal, publishAudit AuditPublisher) AdminService {
	return &adminService{
		configRepo:   configRepo,
		signal:       signal,
		publishAudit: publishAudit,
	}
}

// ActiveConfig 返回当前激活配置。
func (s *adminService) ActiveConfig() (*model.LLMConfig, error) {
	cfg, err := s.configRepo.FindActive()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveConfig
		}
		return nil, err
	}
	return cfg, nil
}

// UpdateActiveConfig 更新激活配置。
func (s *adminService) UpdateActiveConfig(ctx context.Context, input UpdateLLMConfigInput, actor string) error {
	fields := map[string]interface{}{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.SystemPrompt != nil {
		fields["system_prompt"] = *input.SystemPrompt
	}
	if input.Model != nil {
		fields["model"] = *input.Model
	}
	if input.Temperature != nil {
		fields["temperature"] = *input.Temperature
	}
	if input.MaxTokens != nil {
		fields["max_tokens"] = *input.MaxTokens
	}
	if input.TopP != nil {
		fields["top_p"] = *input.TopP
	}
	if input.FrequencyPenalty != nil {
		fields["frequency_penalty"] = *input.FrequencyPenalty
	}
	if input.PresencePenalty != nil {
		fields["presence_penalty"] = *input.PresencePenalty
	}
	if len(fields) == 0 {
		return ErrEmptyConfigEdit
	}

	modified, err := s.configRepo.UpdateActive(fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveConfig
		}
		return err
	}
	if !modified {
		return ErrConfigNotChanged
	}

	// 通知所有聊天连接在下次调用前丢弃缓存链。进行中的对话不被强制打断。
	if err := s.signal.Bump(ctx); err != nil {
		log.Errorf("配置版本号递增失败，已有连接可能继续使用旧配置: %v", err)
	}

	if s.publishAudit != nil {
		if err := s.publishAudit(kafka.AuditEvent{Actor: actor, Action: "llm_config.update", Target: "active", Detail: ""}); err != nil {
			log.Errorf("[AdminService] 审计事件发布失败: %v", err)
		}
	}
	return nil
}

// ListConfigs 返回全部配置行。
func (s *adminService) ListConfigs() ([]model.LLMConfig, error) {
	return s.configRepo.FindAllDesc()
}
