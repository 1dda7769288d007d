// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"maum-talk-go/internal/audit"
	"maum-talk-go/internal/config"
	"maum-talk-go/internal/handler"
	"maum-talk-go/internal/middleware"
	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/database"
	"maum-talk-go/pkg/hash"
	"maum-talk-go/pkg/kafka"
	"maum-talk-go/pkg/llm"
	"maum-talk-go/pkg/log"
	"maum-talk-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitPostgres(cfg.Database.Postgres.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	kafka.InitProducer(cfg.Kafka)

	// 4. 迁移数据表并写入种子数据
	if err := database.DB.AutoMigrate(
		&model.Participant{},
		&model.Session{},
		&model.Message{},
		&model.LLMConfig{},
		&model.AuditEvent{},
	); err != nil {
		log.Fatalf("数据表迁移失败: %v", err)
	}

	// 5. 初始化 Repository
	participantRepo := repository.NewParticipantRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	configRepo := repository.NewLLMConfigRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	seedAdminAccount(participantRepo)
	seedDefaultLLMConfig(configRepo, cfg.LLM)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	configSignal := service.NewConfigSignal(database.RDB)
	participantService := service.NewParticipantService(participantRepo, kafka.PublishAudit)
	sessionService := service.NewSessionService(sessionRepo, participantRepo, time.Duration(cfg.Session.IdleHours)*time.Hour)
	historyService := service.NewHistoryService(messageRepo, sessionRepo)
	chatService := service.NewChatService(llmClient, configRepo, configSignal, cfg.LLM)
	adminService := service.NewAdminService(configRepo, configSignal, kafka.PublishAudit)

	// 7. 启动后台任务：审计事件消费者与闲置会话清理
	go kafka.StartConsumer(cfg.Kafka, audit.NewRecorder(auditRepo))
	go runSessionCleanup(sessionService, time.Duration(cfg.Session.CleanupIntervalMinutes)*time.Minute)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(participantService, sessionService)
	chatHandler := handler.NewChatHandler(chatService, sessionService, historyService)
	adminHandler := handler.NewAdminHandler(participantService, adminService, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		// 参与者端认证路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/resume", authHandler.Resume)

			// 登出需要已解析的会话
			authed := auth.Group("/")
			authed.Use(middleware.SessionAuthMiddleware(sessionService))
			{
				authed.POST("/logout", authHandler.Logout)
			}
		}

		// 管理端路由组
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)
			admin.POST("/refreshToken", adminHandler.RefreshToken)

			// 需要同时通过认证和管理员授权两个中间件
			guarded := admin.Group("/")
			guarded.Use(middleware.AuthMiddleware(jwtManager, participantService), middleware.AdminAuthMiddleware())
			{
				guarded.POST("/logout", adminHandler.Logout)

				guarded.GET("/participants", adminHandler.ListParticipants)
				guarded.GET("/participants/summary", adminHandler.Summary)
				guarded.POST("/participants", adminHandler.CreateParticipant)
				guarded.PUT("/participants/:userId", adminHandler.UpdateParticipant)
				guarded.DELETE("/participants/:userId", adminHandler.DeleteParticipant)

				guarded.GET("/llm-config", adminHandler.GetLLMConfig)
				guarded.PUT("/llm-config", adminHandler.UpdateLLMConfig)
				guarded.GET("/llm-config/history", adminHandler.ListLLMConfigs)
			}
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// seedAdminAccount 在管理员账号不存在时创建它（幂等）。
// 初始口令从环境变量 ADMIN_PASSWORD 读取，未设置时使用默认值，部署后应立即修改。
func seedAdminAccount(participantRepo repository.ParticipantRepository) {
	if _, err := participantRepo.FindByUserID("admin"); err == nil {
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("查询管理员账号失败: %v", err)
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin1234"
	}
	hashed, err := hash.HashPassword(password)
	if err != nil {
		log.Fatalf("管理员口令哈希失败: %v", err)
	}

	admin := &model.Participant{
		UserID:       "admin",
		Password:     hashed,
		Name:         "관리자",
		GroupType:    model.GroupAdmin,
		EnrolledDate: time.Now(),
		SessionLimit: 0,
		Status:       model.StatusActive,
	}
	if err := participantRepo.Create(admin); err != nil {
		log.Fatalf("创建管理员账号失败: %v", err)
	}
	log.Info("已创建初始管理员账号 'admin'")
}

// seedDefaultLLMConfig 在没有任何激活配置时，用部署配置与文件提示词写入默认配置行（幂等）。
func seedDefaultLLMConfig(configRepo repository.LLMConfigRepository, llmCfg config.LLMConfig) {
	if _, err := configRepo.FindActive(); err == nil {
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("查询激活 LLM 配置失败: %v", err)
	}

	prompt, err := os.ReadFile(llmCfg.PromptFile)
	if err != nil {
		log.Fatalf("读取提示词文件失败: %s, error: %v", llmCfg.PromptFile, err)
	}

	gen := llmCfg.Generation
	seed := &model.LLMConfig{
		Name:             "default",
		SystemPrompt:     string(prompt),
		Model:            llmCfg.Model,
		Temperature:      gen.Temperature,
		MaxTokens:        gen.MaxTokens,
		TopP:             gen.TopP,
		FrequencyPenalty: gen.FrequencyPenalty,
		PresencePenalty:  gen.PresencePenalty,
		IsActive:         true,
	}
	if err := configRepo.Create(seed); err != nil {
		log.Fatalf("写入默认 LLM 配置失败: %v", err)
	}
	log.Info("已写入默认的激活 LLM 配置")
}

// runSessionCleanup 周期性地将闲置会话置为不活跃。
func runSessionCleanup(sessionService service.SessionService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		count, err := sessionService.Cleanup()
		if err != nil {
			log.Errorf("闲置会话清理失败: %v", err)
			continue
		}
		if count > 0 {
			log.Infof("闲置会话清理完成，本轮清理 %d 个会话", count)
		}
	}
}
