package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"maum-talk-go/internal/model"
	"maum-talk-go/pkg/kafka"
)

// openTestDB 打开一个临时目录下的 SQLite 数据库并完成建表。
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Participant{},
		&model.Session{},
		&model.Message{},
		&model.LLMConfig{},
		&model.AuditEvent{},
	); err != nil {
		t.Fatalf("测试数据库建表失败: %v", err)
	}
	return db
}

// auditSink 收集发布的审计事件，替代真实的消息队列。
type auditSink struct {
	mu     sync.Mutex
	events []kafka.AuditEvent
}

func (s *auditSink) publish(event kafka.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *auditSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.events))
	for _, e := range s.events {
		actions = append(actions, e.Action)
	}
	return actions
}

// memSignal 是内存版的 ConfigSignal。
type memSignal struct {
	mu      sync.Mutex
	version int64
	fail    bool
}

func (s *memSignal) Version(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("signal unavailable")
	}
	return s.version, nil
}

func (s *memSignal) Bump(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("signal unavailable")
	}
	s.version++
	return nil
}
