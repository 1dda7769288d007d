package repository

import (
	"time"

	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

// MessageRepository 接口定义了消息日志的持久化操作。
type MessageRepository interface {
	// AppendWithSessionUpdate 在一个事务中追加消息、累加会话消息计数并刷新最后访问时间。
	AppendWithSessionUpdate(msg *model.Message) error
	FindBySession(sessionID string) ([]model.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// AppendWithSessionUpdate 追加一条消息。
// 消息插入与会话计数更新必须同时成功或同时失败，否则计数会与消息日志脱节。
func (r *messageRepository) AppendWithSessionUpdate(msg *model.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Session{}).
			Where("session_id = ? AND is_active = ?", msg.SessionID, true).
			Updates(map[string]interface{}{
				"total_messages": gorm.Expr("total_messages + 1"),
				"last_accessed":  time.Now(),
			}).Error
	})
}

// FindBySession 返回一个会话的全部消息，按时间戳升序。
// 同一时间戳内再按主键升序，保证读取顺序与写入顺序一致。
func (r *messageRepository) FindBySession(sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, err
}
