package model

import "time"

// AuditEvent 是审计主题落库后的记录，镜像 Kafka 上的事件载荷。
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"not null;size:64;index" json:"actor"`
	Action    string    `gorm:"not null;size:64;index" json:"action"`
	Target    string    `gorm:"size:64" json:"target"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
