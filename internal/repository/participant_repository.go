// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

// ParticipantRepository 接口定义了参与者数据的持久化操作。
type ParticipantRepository interface {
	Create(p *model.Participant) error
	FindByUserID(userID string) (*model.Participant, error)
	Update(p *model.Participant) error
	// DeleteCascade 在一个事务中删除参与者及其全部会话与消息。
	DeleteCascade(userID string) error
	FindAllWithStats() ([]model.ParticipantStats, error)
	SummaryStats() (*model.SummaryStats, error)
}

// participantRepository 是 ParticipantRepository 接口的 GORM 实现。
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建一个新的 ParticipantRepository 实例。
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Create 在数据库中创建一条新的参与者记录。
func (r *participantRepository) Create(p *model.Participant) error {
	return r.db.Create(p).Error
}

// FindByUserID 根据参与者 ID 查找一条记录。
func (r *participantRepository) FindByUserID(userID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update 更新数据库中一条已存在的参与者记录。
func (r *participantRepository) Update(p *model.Participant) error {
	return r.db.Save(p).Error
}

// DeleteCascade 删除参与者及其所有会话与消息。
// 单独的外键级联在历史数据上并不可靠，这里显式按依赖顺序删除。
func (r *participantRepository) DeleteCascade(userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Session{}).Select("session_id").Where("user_id = ?", userID)
		if err := tx.Where("session_id IN (?)", sub).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.Participant{}).Error
	})
}

// FindAllWithStats 返回所有参与者及其派生的会话/消息统计。
// 排序规则：管理员分组在前，其余按入组时间倒序。
func (r *participantRepository) FindAllWithStats() ([]model.ParticipantStats, error) {
	var stats []model.ParticipantStats
	err := r.db.Raw(`
		SELECT p.user_id,
		       p.name,
		       p.group_type,
		       p.status,
		       p.enrolled_date,
		       p.session_limit,
		       p.phone,
		       p.gender,
		       p.age,
		       COUNT(s.session_id)              AS completed_sessions,
		       COALESCE(SUM(s.total_messages), 0) AS total_messages,
		       MAX(s.start_time)                AS last_session_started_at
		FROM participants p
		LEFT JOIN sessions s ON s.user_id = p.user_id
		GROUP BY p.user_id, p.name, p.group_type, p.status, p.enrolled_date,
		         p.session_limit, p.phone, p.gender, p.age
		ORDER BY CASE WHEN p.group_type = 'admin' THEN 0 ELSE 1 END,
		         p.enrolled_date DESC
	`).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SummaryStats 返回研究整体的汇总统计。
func (r *participantRepository) SummaryStats() (*model.SummaryStats, error) {
	var s model.SummaryStats
	err := r.db.Raw(`
		SELECT COUNT(*)                                              AS total_participants,
		       SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END)    AS active_participants,
		       SUM(CASE WHEN group_type = 'treatment' THEN 1 ELSE 0 END) AS treatment_group,
		       SUM(CASE WHEN group_type = 'control' THEN 1 ELSE 0 END)   AS control_group,
		       SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS completed_participants,
		       SUM(CASE WHEN status = 'dropout' THEN 1 ELSE 0 END)   AS dropout_participants
		FROM participants
		WHERE group_type <> 'admin'
	`).Scan(&s).Error
	if err != nil {
		return nil, err
	}

	// 人均会话数单独计算，避免在一条 SQL 里混合两张表的聚合
	var sessionCount int64
	if err := r.db.Model(&model.Session{}).
		Joins("JOIN participants p ON p.user_id = sessions.user_id").
		Where("p.group_type <> ?", model.GroupAdmin).
		Count(&sessionCount).Error; err != nil {
		return nil, err
	}
	if s.TotalParticipants > 0 {
		s.AvgSessionsPerParticipant = float64(sessionCount) / float64(s.TotalParticipants)
	}
	return &s, nil
}
