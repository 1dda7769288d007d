package model

import "time"

// LLMConfig 代表一行 LLM 参数与系统提示词配置。
// 任意时刻只有一行 is_active 为 true；编辑会更新激活行并保留历史行供审查。
type LLMConfig struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null;size:64" json:"name"`
	SystemPrompt     string    `gorm:"type:text;not null" json:"systemPrompt"`
	Model            string    `gorm:"not null;size:64" json:"model"`
	Temperature      float64   `gorm:"not null;default:0.5" json:"temperature"`
	MaxTokens        int       `gorm:"not null;default:1024" json:"maxTokens"`
	TopP             float64   `gorm:"not null;default:1" json:"topP"`
	FrequencyPenalty float64   `gorm:"not null;default:0" json:"frequencyPenalty"`
	PresencePenalty  float64   `gorm:"not null;default:0" json:"presencePenalty"`
	IsActive         bool      `gorm:"not null;default:false;index" json:"isActive"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (LLMConfig) TableName() string {
	return "llm_configs"
}
