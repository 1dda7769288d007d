// Package audit 负责把审计事件流落库。
package audit

import (
	"context"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/kafka"
	"maum-talk-go/pkg/log"
)

// Recorder 实现 kafka.EventProcessor，把审计主题上的事件写入 audit_events 表。
type Recorder struct {
	auditRepo repository.AuditRepository
}

// NewRecorder 创建一个新的 Recorder 实例。
func NewRecorder(auditRepo repository.AuditRepository) *Recorder {
	return &Recorder{auditRepo: auditRepo}
}

// Process 持久化一条审计事件。
func (r *Recorder) Process(ctx context.Context, event kafka.AuditEvent) error {
	record := &model.AuditEvent{
		Actor:     event.Actor,
		Action:    event.Action,
		Target:    event.Target,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp,
	}
	if err := r.auditRepo.Create(record); err != nil {
		return err
	}
	log.Debugf("审计事件已落库: actor=%s action=%s target=%s", event.Actor, event.Action, event.Target)
	return nil
}
