// Package kafka 提供了审计事件流的生产与消费功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"maum-talk-go/internal/config"
	"maum-talk-go/pkg/database"
	"maum-talk-go/pkg/log"
)

// AuditEvent 是审计主题上的消息载荷。
// 参与者与 LLM 配置的每一次变更都会发布一条事件，由后台消费者落库。
type AuditEvent struct {
	Actor     string    `json:"actor"`     // 操作者（管理员账号或 system）
	Action    string    `json:"action"`    // 动作，如 participant.create / llm_config.update
	Target    string    `json:"target"`    // 被操作对象的标识
	Detail    string    `json:"detail"`    // 补充说明
	Timestamp time.Time `json:"timestamp"` // 事件发生时间
}

// EventProcessor defines the interface for any service that can process an audit event.
// This decouples the Kafka consumer from the concrete recorder implementation.
type EventProcessor interface {
	Process(ctx context.Context, event AuditEvent) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// PublishAudit 发送一条审计事件到 Kafka。
// 审计写入失败不应阻断业务操作，调用方只记录错误。
func PublishAudit(event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Value: eventBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来持久化审计事件。
func StartConsumer(cfg config.KafkaConfig, processor EventProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "maum-talk-audit-consumer",
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break // 退出循环，可能需要重启策略
		}

		var event AuditEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析审计事件: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := processor.Process(context.Background(), event); err != nil {
			log.Errorf("持久化审计事件失败: action=%s, target=%s, error: %v", event.Action, event.Target, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:%d:%d", m.Partition, m.Offset)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("审计事件多次失败(>=3)，提交 offset 终止重试: action=%s", event.Action)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// attempts < 3 时，不提交 offset 让 Kafka 自动重试
		} else {
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%d:%d", m.Partition, m.Offset)).Err()
			// 事件处理成功后，手动提交 offset
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
