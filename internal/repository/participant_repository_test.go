package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

func newParticipant(userID, name, group string, enrolled time.Time) *model.Participant {
	return &model.Participant{
		UserID:       userID,
		Password:     "hashed-secret",
		Name:         name,
		GroupType:    group,
		EnrolledDate: enrolled,
		SessionLimit: 8,
		Status:       model.StatusActive,
	}
}

func Test_Participant_Create_And_Find(t *testing.T) {
	req := require.New(t)
	repo := NewParticipantRepository(openTestDB(t))

	p := newParticipant("P001", "김철수", model.GroupTreatment, time.Now())
	req.NoError(repo.Create(p))

	found, err := repo.FindByUserID("P001")
	req.NoError(err)
	req.Equal("김철수", found.Name)
	req.Equal(model.GroupTreatment, found.GroupType)
	req.Equal(8, found.SessionLimit)
}

func Test_Participant_Duplicate_UserID(t *testing.T) {
	req := require.New(t)
	repo := NewParticipantRepository(openTestDB(t))

	req.NoError(repo.Create(newParticipant("P001", "김철수", model.GroupTreatment, time.Now())))
	req.Error(repo.Create(newParticipant("P001", "이영희", model.GroupControl, time.Now())))
}

func Test_Participant_FindByUserID_NotFound(t *testing.T) {
	req := require.New(t)
	repo := NewParticipantRepository(openTestDB(t))

	_, err := repo.FindByUserID("ghost")
	req.ErrorIs(err, gorm.ErrRecordNotFound)
}

func Test_Participant_DeleteCascade(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewParticipantRepository(db)

	req.NoError(repo.Create(newParticipant("P001", "김철수", model.GroupTreatment, time.Now())))
	req.NoError(repo.Create(newParticipant("P002", "이영희", model.GroupControl, time.Now())))

	now := time.Now()
	sessions := []model.Session{
		{SessionID: "s-1", UserID: "P001", StartTime: now, SessionCount: 1, SessionToken: "tok-1", LastAccessed: now, IsActive: true},
		{SessionID: "s-2", UserID: "P001", StartTime: now, SessionCount: 2, SessionToken: "tok-2", LastAccessed: now, IsActive: false},
		{SessionID: "s-3", UserID: "P002", StartTime: now, SessionCount: 1, SessionToken: "tok-3", LastAccessed: now, IsActive: true},
	}
	req.NoError(db.Create(&sessions).Error)
	messages := []model.Message{
		{SessionID: "s-1", Role: model.RoleUser, Content: "안녕하세요", Timestamp: now, MessageLength: 5},
		{SessionID: "s-2", Role: model.RoleAssistant, Content: "반갑습니다", Timestamp: now, MessageLength: 5},
		{SessionID: "s-3", Role: model.RoleUser, Content: "잘 지냈어요", Timestamp: now, MessageLength: 6},
	}
	req.NoError(db.Create(&messages).Error)

	req.NoError(repo.DeleteCascade("P001"))

	_, err := repo.FindByUserID("P001")
	req.ErrorIs(err, gorm.ErrRecordNotFound)

	var sessionCount, messageCount int64
	req.NoError(db.Model(&model.Session{}).Count(&sessionCount).Error)
	req.NoError(db.Model(&model.Message{}).Count(&messageCount).Error)
	req.EqualValues(1, sessionCount)
	req.EqualValues(1, messageCount)
}

func Test_Participant_Stats_AdminFirst_Then_Recent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewParticipantRepository(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req.NoError(repo.Create(newParticipant("P001", "김철수", model.GroupTreatment, base)))
	req.NoError(repo.Create(newParticipant("P002", "이영희", model.GroupControl, base.AddDate(0, 0, 5))))
	req.NoError(repo.Create(newParticipant("admin", "관리자", model.GroupAdmin, base.AddDate(0, 0, -30))))

	now := time.Now()
	sessions := []model.Session{
		{SessionID: "s-1", UserID: "P001", StartTime: now.Add(-2 * time.Hour), SessionCount: 1, SessionToken: "tok-1", TotalMessages: 4, LastAccessed: now, IsActive: false},
		{SessionID: "s-2", UserID: "P001", StartTime: now, SessionCount: 2, SessionToken: "tok-2", TotalMessages: 6, LastAccessed: now, IsActive: true},
	}
	req.NoError(db.Create(&sessions).Error)

	stats, err := repo.FindAllWithStats()
	req.NoError(err)
	req.Len(stats, 3)

	// 管理员在最前，之后按入组时间倒序
	req.Equal("admin", stats[0].UserID)
	req.Equal("P002", stats[1].UserID)
	req.Equal("P001", stats[2].UserID)

	req.EqualValues(2, stats[2].CompletedSessions)
	req.EqualValues(10, stats[2].TotalMessages)
	req.NotNil(stats[2].LastSessionStartedAt)
	req.EqualValues(0, stats[1].CompletedSessions)
}

func Test_Summary_Excludes_Admin(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewParticipantRepository(db)

	now := time.Now()
	req.NoError(repo.Create(newParticipant("admin", "관리자", model.GroupAdmin, now)))
	req.NoError(repo.Create(newParticipant("P001", "김철수", model.GroupTreatment, now)))
	req.NoError(repo.Create(newParticipant("P002", "이영희", model.GroupControl, now)))
	dropout := newParticipant("P003", "박민수", model.GroupTreatment, now)
	dropout.Status = model.StatusDropout
	req.NoError(repo.Create(dropout))

	sessions := []model.Session{
		{SessionID: "s-1", UserID: "P001", StartTime: now, SessionCount: 1, SessionToken: "tok-1", LastAccessed: now},
		{SessionID: "s-2", UserID: "P001", StartTime: now, SessionCount: 2, SessionToken: "tok-2", LastAccessed: now},
		{SessionID: "s-3", UserID: "P002", StartTime: now, SessionCount: 1, SessionToken: "tok-3", LastAccessed: now},
	}
	req.NoError(db.Create(&sessions).Error)

	s, err := repo.SummaryStats()
	req.NoError(err)
	req.EqualValues(3, s.TotalParticipants)
	req.EqualValues(2, s.ActiveParticipants)
	req.EqualValues(2, s.TreatmentGroup)
	req.EqualValues(1, s.ControlGroup)
	req.EqualValues(1, s.DropoutParticipants)
	req.InDelta(1.0, s.AvgSessionsPerParticipant, 0.0001)
}
