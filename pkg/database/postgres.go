package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"maum-talk-go/pkg/log"
)

var DB *gorm.DB

// InitPostgres 初始化 PostgreSQL 数据库连接
func InitPostgres(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		// 可以在这里添加 GORM 的配置
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池，替代原设计的每次调用单独建连
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(50)           // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Info("PostgreSQL database connected successfully")
}
