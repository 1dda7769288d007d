package repository

import (
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

// LLMConfigRepository 接口定义了 LLM 配置行的持久化操作。
type LLMConfigRepository interface {
	FindActive() (*model.LLMConfig, error)
	// UpdateActive 更新激活配置并保留编辑前的历史快照，返回是否有行被修改。
	UpdateActive(fields map[string]interface{}) (bool, error)
	FindAllDesc() ([]model.LLMConfig, error)
	Create(cfg *model.LLMConfig) error
}

type llmConfigRepository struct {
	db *gorm.DB
}

// NewLLMConfigRepository 创建一个新的 LLMConfigRepository 实例。
func NewLLMConfigRepository(db *gorm.DB) LLMConfigRepository {
	return &llmConfigRepository{db: db}
}

// FindActive 返回当前唯一的激活配置。
func (r *llmConfigRepository) FindActive() (*model.LLMConfig, error) {
	var cfg model.LLMConfig
	err := r.db.Where("is_active = ?", true).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateActive 更新激活配置。
// 更新前把旧值作为一条非激活行插入，使配置历史可以按时间回溯审查。
// 字段值与当前行完全一致时不产生快照，返回 false。
func (r *llmConfigRepository) UpdateActive(fields map[string]interface{}) (bool, error) {
	var modified bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current model.LLMConfig
		if err := tx.Where("is_active = ?", true).First(&current).Error; err != nil {
			return err
		}

		if !changesAnything(&current, fields) {
			return nil
		}

		snapshot := current
		snapshot.ID = 0
		snapshot.IsActive = false
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.LLMConfig{}).
			Where("id = ?", current.ID).
			Updates(fields).Error; err != nil {
			return err
		}
		modified = true
		return nil
	})
	return modified, err
}

// changesAnything 判断字段集合相对当前行是否存在实际变化。
func changesAnything(current *model.LLMConfig, fields map[string]interface{}) bool {
	currentValues := map[string]interface{}{
		"name":              current.Name,
		"system_prompt":     current.SystemPrompt,
		"model":             current.Model,
		"temperature":       current.Temperature,
		"max_tokens":        current.MaxTokens,
		"top_p":             current.TopP,
		"frequency_penalty": current.FrequencyPenalty,
		"presence_penalty":  current.PresencePenalty,
	}
	for column, value := range fields {
		if existing, ok := currentValues[column]; !ok || existing != value {
			return true
		}
	}
	return false
}

// FindAllDesc 返回全部配置行，最新的在前。
func (r *llmConfigRepository) FindAllDesc() ([]model.LLMConfig, error) {
	var configs []model.LLMConfig
	err := r.db.Order("updated_at DESC, id DESC").Find(&configs).Error
	return configs, err
}

// Create 插入一条配置行，用于初始化或数据迁移。
func (r *llmConfigRepository) Create(cfg *model.LLMConfig) error {
	return r.db.Create(cfg).Error
}
