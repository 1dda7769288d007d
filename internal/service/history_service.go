package service

import (
	"time"
	"unicode/utf8"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
)

// HistoryService 是会话级有序消息日志的读写入口。
// 契约是显式两段式的：Load 返回一次性的有序快照，Append 单独落库，
// 服务自身不持有任何缓存状态；每个交互连接自己维护内存副本。
type HistoryService interface {
	Load(sessionID string) ([]model.Message, error)
	// Append 持久化一条消息，同时累加会话消息计数并刷新最后访问时间，三者在同一事务中。
	Append(sessionID, role, content string, responseTime *float64) (*model.Message, error)
	// Clear 将会话置为不活跃。消息本身不做物理删除。
	Clear(sessionID string) error
}

type historyService struct {
	messageRepo repository.MessageRepository
	sessionRepo repository.SessionRepository
}

// NewHistoryService 创建一个新的 HistoryService 实例。
func NewHistoryService(messageRepo repository.MessageRepository, sessionRepo repository.SessionRepository) HistoryService {
	return &historyService{
		messageRepo: messageRepo,
		sessionRepo: sessionRepo,
	}
}

// Load 返回会话的全部消息，按时间戳升序。
func (s *historyService) Load(sessionID string) ([]model.Message, error) {
	return s.messageRepo.FindBySession(sessionID)
}

// Append 追加一条消息。长度按字符数而非字节数统计，韩文内容下两者差异很大。
func (s *historyService) Append(sessionID, role, content string, responseTime *float64) (*model.Message, error) {
	msg := &model.Message{
		SessionID:           sessionID,
		Role:                role,
		Content:             content,
		Timestamp:           time.Now(),
		MessageLength:       utf8.RuneCountInString(content),
		ResponseTimeSeconds: responseTime,
	}
	if err := s.messageRepo.AppendWithSessionUpdate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Clear 结束会话的对话历史。
func (s *historyService) Clear(sessionID string) error {
	return s.sessionRepo.Deactivate(sessionID)
}
