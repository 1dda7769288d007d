package repository

import (
	"time"

	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

// SessionRepository 接口定义了会话数据的持久化操作。
type SessionRepository interface {
	Create(s *model.Session) error
	FindByToken(token string) (*model.Session, error)
	FindLatestActiveByUser(userID string) (*model.Session, error)
	// NextSessionCount 返回该参与者的下一个会话序号（已有最大值 + 1）。
	NextSessionCount(userID string) (int, error)
	Touch(sessionID string, at time.Time) error
	// End 记录会话结束时间，对已结束的会话幂等。
	End(sessionID string, at time.Time) error
	Deactivate(sessionID string) error
	// DeactivateIdle 将最后访问早于 before 的活跃会话置为不活跃，返回受影响行数。
	DeactivateIdle(before time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create 在数据库中创建一条新的会话记录。
func (r *sessionRepository) Create(s *model.Session) error {
	return r.db.Create(s).Error
}

// FindByToken 根据令牌查找一条活跃会话。
// 令牌唯一索引保证最多命中一条记录。
func (r *sessionRepository) FindByToken(token string) (*model.Session, error) {
	var s model.Session
	err := r.db.Where("session_token = ? AND is_active = ?", token, true).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindLatestActiveByUser 返回该参与者最近访问的一条活跃会话。
func (r *sessionRepository) FindLatestActiveByUser(userID string) (*model.Session, error) {
	var s model.Session
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_accessed DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// NextSessionCount 返回该参与者的下一个会话序号。
func (r *sessionRepository) NextSessionCount(userID string) (int, error) {
	var maxCount int
	err := r.db.Model(&model.Session{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(session_count), 0)").
		Scan(&maxCount).Error
	if err != nil {
		return 0, err
	}
	return maxCount + 1, nil
}

// Touch 刷新会话的最后访问时间。
func (r *sessionRepository) Touch(sessionID string, at time.Time) error {
	return r.db.Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_accessed", at).Error
}

// End 记录会话结束时间并将其置为不活跃。
// WHERE end_time IS NULL 保证重复调用不会覆盖首次结束时间。
func (r *sessionRepository) End(sessionID string, at time.Time) error {
	return r.db.Model(&model.Session{}).
		Where("session_id = ? AND end_time IS NULL", sessionID).
		Updates(map[string]interface{}{"end_time": at, "is_active": false}).Error
}

// Deactivate 将会话置为不活跃，不记录结束时间。
func (r *sessionRepository) Deactivate(sessionID string) error {
	return r.db.Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("is_active", false).Error
}

// DeactivateIdle 清理闲置会话。
func (r *sessionRepository) DeactivateIdle(before time.Time) (int64, error) {
	result := r.db.Model(&model.Session{}).
		Where("is_active = ? AND last_accessed < ?", true, before).
		Updates(map[string]interface{}{"is_active": false, "end_time": time.Now()})
	return result.RowsAffected, result.Error
}
