package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/log"
	"maum-talk-go/pkg/token"
)

// ErrSessionInvalid 表示令牌缺失、过期或会话已不活跃。
// 对调用方永远不是致命错误：处理器收到它之后回退到登录页。
var ErrSessionInvalid = errors.New("session token invalid or expired")

// ResolvedSession 是令牌解析成功后的会话快照。
type ResolvedSession struct {
	Participant *model.Participant
	Session     *model.Session
}

// SessionService 接口定义了会话生命周期的业务操作。
type SessionService interface {
	// CreateOrResume 复用该参与者最近访问的活跃会话；没有则创建新会话。
	// 同一天内重复登录因此回到同一个对话线程，而不是产生重复会话。
	CreateOrResume(userID string) (*model.Session, error)
	Resolve(tokenString string) (*ResolvedSession, error)
	End(sessionID string) error
	// Cleanup 将闲置超过保留阈值的会话置为不活跃，返回受影响数量。
	// 由后台定时任务调用，不在请求路径上。
	Cleanup() (int64, error)
}

type sessionService struct {
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	idleThreshold   time.Duration
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, participantRepo repository.ParticipantRepository, idleThreshold time.Duration) SessionService {
	return &sessionService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		idleThreshold:   idleThreshold,
	}
}

// CreateOrResume 查找或创建该参与者的活跃会话。
func (s *sessionService) CreateOrResume(userID string) (*model.Session, error) {
	existing, err := s.sessionRepo.FindLatestActiveByUser(userID)
	if err == nil {
		// 已有活跃会话：刷新最后访问时间后直接复用
		if err := s.sessionRepo.Touch(existing.SessionID, time.Now()); err != nil {
			return nil, err
		}
		log.Infof("复用已有会话: %s -> %s (第 %d 次会话)", userID, existing.SessionID, existing.SessionCount)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	count, err := s.sessionRepo.NextSessionCount(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &model.Session{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		StartTime:    now,
		SessionCount: count,
		SessionToken: token.GenerateSessionToken(),
		LastAccessed: now,
		IsActive:     true,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	log.Infof("新建会话: %s -> %s (第 %d 次会话)", userID, session.SessionID, count)
	return session, nil
}

// Resolve 将不透明令牌解析为参与者与会话。
// 闲置超过阈值的会话在解析时顺带置为不活跃，之后同一令牌不再可用。
func (s *sessionService) Resolve(tokenString string) (*ResolvedSession, error) {
	if tokenString == "" {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessionRepo.FindByToken(tokenString)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	if time.Since(session.LastAccessed) > s.idleThreshold {
		if err := s.sessionRepo.Deactivate(session.SessionID); err != nil {
			log.Errorf("过期会话置为不活跃失败: %s, error: %v", session.SessionID, err)
		}
		return nil, ErrSessionInvalid
	}

	participant, err := s.participantRepo.FindByUserID(session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 参与者已被删除而会话未被级联清理，按无效令牌处理
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	if err := s.sessionRepo.Touch(session.SessionID, time.Now()); err != nil {
		return nil, err
	}

	return &ResolvedSession{Participant: participant, Session: session}, nil
}

// End 结束一个会话，重复调用是幂等的。
func (s *sessionService) End(sessionID string) error {
	return s.sessionRepo.End(sessionID, time.Now())
}

// Cleanup 清理闲置会话。
func (s *sessionService) Cleanup() (int64, error) {
	count, err := s.sessionRepo.DeactivateIdle(time.Now().Add(-s.idleThreshold))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Infof("清理闲置会话: %d 个", count)
	}
	return count, nil
}
