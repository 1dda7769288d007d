package repository

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"maum-talk-go/internal/model"
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
