// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/hash"
	"maum-talk-go/pkg/kafka"
	"maum-talk-go/pkg/log"
)

// AuditPublisher 把一条审计事件发布到事件流。
// 通过显式注入（而非包级单例）传给各服务，便于测试时替换。
type AuditPublisher func(event kafka.AuditEvent) error

// 对外暴露的业务错误。区分验证失败与持久化失败，处理器据此选择响应码。
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrDuplicateUserID     = errors.New("participant id already exists")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAdminUndeletable    = errors.New("admin account cannot be deleted")
	ErrInvalidGroup        = errors.New("invalid group type")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidAge          = errors.New("age out of range")
	ErrWeakSecret          = errors.New("password too short")
	ErrShortUserID         = errors.New("participant id too short")
)

// CreateParticipantInput 是创建参与者所需的字段。
type CreateParticipantInput struct {
	UserID   string
	Password string
	Name     string
	Group    string
	Phone    *string
	Gender   *string
	Age      *int
}

// UpdateParticipantInput 是部分更新的字段集合，nil 表示保持原值。
type UpdateParticipantInput struct {
	Name     *string
	Password *string
	Phone    *string
	Gender   *string
	Age      *int
}

// ParticipantService 接口定义了所有与参与者相关的业务操作。
type ParticipantService interface {
	Authenticate(userID, password string) (*model.Participant, error)
	Create(input CreateParticipantInput, actor string) (*model.Participant, error)
	Get(userID string) (*model.Participant, error)
	Update(userID string, input UpdateParticipantInput, actor string) error
	UpdateStatus(userID, status, actor string) error
	Delete(userID, actor string) error
	ListWithStats() ([]model.ParticipantStats, error)
	Summary() (*model.SummaryStats, error)
}

// participantService 是 ParticipantService 接口的实现。
type participantService struct {
	participantRepo repository.ParticipantRepository
	publishAudit    AuditPublisher
}

// NewParticipantService 创建一个新的 ParticipantService 实例。
func NewParticipantService(participantRepo repository.ParticipantRepository, publishAudit AuditPublisher) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		publishAudit:    publishAudit,
	}
}

// Authenticate 校验参与者 ID 与口令。
// 未知 ID 与口令错误返回同一个错误，不向调用方泄露账号是否存在。
func (s *participantService) Authenticate(userID, password string) (*model.Participant, error) {
	p, err := s.participantRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !hash.CheckPasswordHash(password, p.Password) {
		return nil, ErrInvalidCredentials
	}

	return p, nil
}

// Create 处理参与者注册的业务逻辑。所有校验在任何写入之前完成。
func (s *participantService) Create(input CreateParticipantInput, actor string) (*model.Participant, error) {
	if len(input.UserID) < 3 {
		return nil, ErrShortUserID
	}
	if len(input.Password) < 4 {
		return nil, ErrWeakSecret
	}
	if !model.ValidGroup(input.Group) {
		return nil, ErrInvalidGroup
	}
	if input.Age != nil && (*input.Age < model.MinAge || *input.Age > model.MaxAge) {
		return nil, ErrInvalidAge
	}

	// 检查参与者 ID 是否已存在。重复创建不得改动既有记录。
	_, err := s.participantRepo.FindByUserID(input.UserID)
	if err == nil {
		return nil, ErrDuplicateUserID
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := hash.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	p := &model.Participant{
		UserID:       input.UserID,
		Password:     hashedPassword,
		Name:         input.Name,
		GroupType:    input.Group,
		EnrolledDate: time.Now(),
		SessionLimit: 8,
		Status:       model.StatusActive,
		Phone:        input.Phone,
		Gender:       input.Gender,
		Age:          input.Age,
	}

	if err := s.participantRepo.Create(p); err != nil {
		return nil, err
	}

	s.audit(actor, "participant.create", p.UserID, fmt.Sprintf("name=%s group=%s", p.Name, p.GroupType))
	return p, nil
}

// Get 根据参与者 ID 获取详细信息。
func (s *participantService) Get(userID string) (*model.Participant, error) {
	p, err := s.participantRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update 部分更新参与者信息，nil 字段保持原值。非空口令会重新哈希。
func (s *participantService) Update(userID string, input UpdateParticipantInput, actor string) error {
	p, err := s.participantRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}

	if input.Age != nil && (*input.Age < model.MinAge || *input.Age > model.MaxAge) {
		return ErrInvalidAge
	}
	if input.Password != nil {
		if len(*input.Password) < 4 {
			return ErrWeakSecret
		}
		hashed, err := hash.HashPassword(*input.Password)
		if err != nil {
			return err
		}
		p.Password = hashed
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Phone != nil {
		p.Phone = input.Phone
	}
	if input.Gender != nil {
		p.Gender = input.Gender
	}
	if input.Age != nil {
		p.Age = input.Age
	}

	if err := s.participantRepo.Update(p); err != nil {
		return err
	}

	s.audit(actor, "participant.update", userID, "")
	return nil
}

// UpdateStatus 变更参与者生命周期状态。
func (s *participantService) UpdateStatus(userID, status, actor string) error {
	if !model.ValidStatus(status) {
		return ErrInvalidStatus
	}

	p, err := s.participantRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}

	p.Status = status
	if err := s.participantRepo.Update(p); err != nil {
		return err
	}

	s.audit(actor, "participant.status", userID, status)
	return nil
}

// Delete 删除参与者及其全部会话与消息。管理员账号不可删除。
func (s *participantService) Delete(userID, actor string) error {
	p, err := s.participantRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}

	if p.IsAdmin() {
		return ErrAdminUndeletable
	}

	if err := s.participantRepo.DeleteCascade(userID); err != nil {
		return err
	}

	s.audit(actor, "participant.delete", userID, fmt.Sprintf("name=%s", p.Name))
	return nil
}

// ListWithStats 返回所有参与者及其派生统计。
func (s *participantService) ListWithStats() ([]model.ParticipantStats, error) {
	return s.participantRepo.FindAllWithStats()
}

// Summary 返回研究整体汇总统计。
func (s *participantService) Summary() (*model.SummaryStats, error) {
	return s.participantRepo.SummaryStats()
}

// audit 发布一条审计事件。审计失败只记日志，不阻断业务操作。
func (s *participantService) audit(actor, action, target, detail string) {
	if s.publishAudit == nil {
		return
	}
	if err := s.publishAudit(kafka.AuditEvent{Actor: actor, Action: action, Target: target, Detail: detail}); err != nil {
		log.Errorf("[ParticipantService] 审计事件发布失败: action=%s, target=%s, error: %v", action, target, err)
	}
}
