package model

import "time"

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表一条持久化的对话消息，按时间戳在会话内有序，只追加不修改。
// ResponseTimeSeconds 对 user 消息记录参与者的思考时间，
// 对 assistant 消息记录模型的生成耗时。
type Message struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	SessionID           string    `gorm:"not null;size:36;index" json:"sessionId"`
	Role                string    `gorm:"not null;size:16" json:"role"`
	Content             string    `gorm:"type:text;not null" json:"content"`
	Timestamp           time.Time `gorm:"not null;index" json:"timestamp"`
	MessageLength       int       `gorm:"not null" json:"messageLength"`
	ResponseTimeSeconds *float64  `json:"responseTimeSeconds,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// ChatMessage 是传给 LLM 的轻量角色消息，不落库。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
