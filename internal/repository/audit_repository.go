package repository

import (
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

// AuditRepository 接口定义了审计记录的持久化操作。
type AuditRepository interface {
	Create(event *model.AuditEvent) error
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建一个新的 AuditRepository 实例。
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create 插入一条审计记录。
func (r *auditRepository) Create(event *model.AuditEvent) error {
	return r.db.Create(event).Error
}
