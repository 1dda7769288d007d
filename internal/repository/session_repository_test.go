package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

func seedSession(t *testing.T, db *gorm.DB, sessionID, userID, token string, count int, lastAccessed time.Time, active bool) {
	t.Helper()
	s := model.Session{
		SessionID:    sessionID,
		UserID:       userID,
		StartTime:    lastAccessed,
		SessionCount: count,
		SessionToken: token,
		LastAccessed: lastAccessed,
		IsActive:     active,
	}
	require.NoError(t, db.Create(&s).Error)
}

func Test_Session_FindByToken_ActiveOnly(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	now := time.Now()
	seedSession(t, db, "s-1", "P001", "tok-active", 1, now, true)
	seedSession(t, db, "s-2", "P001", "tok-ended", 2, now, false)

	found, err := repo.FindByToken("tok-active")
	req.NoError(err)
	req.Equal("s-1", found.SessionID)

	_, err = repo.FindByToken("tok-ended")
	req.ErrorIs(err, gorm.ErrRecordNotFound)

	_, err = repo.FindByToken("tok-missing")
	req.ErrorIs(err, gorm.ErrRecordNotFound)
}

func Test_Session_FindLatestActiveByUser(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	now := time.Now()
	seedSession(t, db, "s-old", "P001", "tok-1", 1, now.Add(-3*time.Hour), true)
	seedSession(t, db, "s-new", "P001", "tok-2", 2, now, true)
	seedSession(t, db, "s-other", "P002", "tok-3", 1, now, true)

	found, err := repo.FindLatestActiveByUser("P001")
	req.NoError(err)
	req.Equal("s-new", found.SessionID)
}

func Test_Session_NextSessionCount(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	count, err := repo.NextSessionCount("P001")
	req.NoError(err)
	req.Equal(1, count)

	now := time.Now()
	seedSession(t, db, "s-1", "P001", "tok-1", 1, now, false)
	seedSession(t, db, "s-2", "P001", "tok-2", 2, now, false)
	seedSession(t, db, "s-5", "P001", "tok-5", 5, now, false)

	count, err = repo.NextSessionCount("P001")
	req.NoError(err)
	req.Equal(6, count)
}

func Test_Session_End_Idempotent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	seedSession(t, db, "s-1", "P001", "tok-1", 1, time.Now(), true)

	first := time.Now()
	req.NoError(repo.End("s-1", first))

	var s model.Session
	req.NoError(db.First(&s, "session_id = ?", "s-1").Error)
	req.NotNil(s.EndTime)
	req.False(s.IsActive)
	ended := *s.EndTime

	// 重复结束不改写首次的结束时间
	req.NoError(repo.End("s-1", first.Add(time.Hour)))
	req.NoError(db.First(&s, "session_id = ?", "s-1").Error)
	req.WithinDuration(ended, *s.EndTime, time.Second)
}

func Test_Session_DeactivateIdle(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	now := time.Now()
	seedSession(t, db, "s-idle", "P001", "tok-1", 1, now.Add(-48*time.Hour), true)
	seedSession(t, db, "s-live", "P002", "tok-2", 1, now, true)
	seedSession(t, db, "s-done", "P003", "tok-3", 1, now.Add(-48*time.Hour), false)

	count, err := repo.DeactivateIdle(now.Add(-24 * time.Hour))
	req.NoError(err)
	req.EqualValues(1, count)

	var s model.Session
	req.NoError(db.First(&s, "session_id = ?", "s-idle").Error)
	req.False(s.IsActive)
	req.NoError(db.First(&s, "session_id = ?", "s-live").Error)
	req.True(s.IsActive)
}
