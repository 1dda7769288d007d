package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"maum-talk-go/internal/config"
	"maum-talk-go/internal/middleware"
	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/hash"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.Conf.Session.CookieDays = 7

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Participant{}, &model.Session{}, &model.Message{}))

	hashed, err := hash.HashPassword("abcd")
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Participant{
		UserID:       "P001",
		Password:     hashed,
		Name:         "김철수",
		GroupType:    model.GroupTreatment,
		EnrolledDate: time.Now(),
		SessionLimit: 8,
		Status:       model.StatusActive,
	}).Error)

	participantRepo := repository.NewParticipantRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	participantService := service.NewParticipantService(participantRepo, nil)
	sessionService := service.NewSessionService(sessionRepo, participantRepo, 24*time.Hour)
	authHandler := NewAuthHandler(participantService, sessionService)

	r := gin.New()
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/resume", authHandler.Resume)
		authed := auth.Group("/")
		authed.Use(middleware.SessionAuthMiddleware(sessionService))
		{
			authed.POST("/logout", authHandler.Logout)
		}
	}
	return r
}

func doLogin(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func Test_Login_Sets_Cookie_And_Returns_Session(t *testing.T) {
	req := require.New(t)
	r := newAuthRouter(t)

	w := doLogin(t, r, `{"userId":"P001","password":"abcd"}`)
	req.Equal(http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			SessionToken string `json:"sessionToken"`
			SessionID    string `json:"sessionId"`
			SessionCount int    `json:"sessionCount"`
			Participant  struct {
				Name string `json:"name"`
			} `json:"participant"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Len(resp.Data.SessionToken, 64)
	req.Equal(1, resp.Data.SessionCount)
	req.Equal("김철수", resp.Data.Participant.Name)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	req.NotNil(sessionCookie)
	req.Equal(resp.Data.SessionToken, sessionCookie.Value)
}

func Test_Login_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	r := newAuthRouter(t)

	req.Equal(http.StatusUnauthorized, doLogin(t, r, `{"userId":"P001","password":"wrong"}`).Code)
	req.Equal(http.StatusUnauthorized, doLogin(t, r, `{"userId":"ghost","password":"abcd"}`).Code)
	req.Equal(http.StatusBadRequest, doLogin(t, r, `{"userId":"P001"}`).Code)
}

func Test_Resume_And_Logout_Flow(t *testing.T) {
	req := require.New(t)
	r := newAuthRouter(t)

	login := doLogin(t, r, `{"userId":"P001","password":"abcd"}`)
	req.Equal(http.StatusOK, login.Code)
	var loginResp struct {
		Data struct {
			SessionToken string `json:"sessionToken"`
			SessionID    string `json:"sessionId"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(login.Body.Bytes(), &loginResp))

	// 携带查询参数令牌恢复会话
	w := httptest.NewRecorder()
	resume := httptest.NewRequest(http.MethodGet, "/api/v1/auth/resume?token="+loginResp.Data.SessionToken, nil)
	r.ServeHTTP(w, resume)
	req.Equal(http.StatusOK, w.Code)

	var resumeResp struct {
		Data struct {
			SessionID string `json:"sessionId"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resumeResp))
	req.Equal(loginResp.Data.SessionID, resumeResp.Data.SessionID)

	// 登出后同一令牌不再可用
	w = httptest.NewRecorder()
	logout := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+loginResp.Data.SessionToken)
	r.ServeHTTP(w, logout)
	req.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	resumeAgain := httptest.NewRequest(http.MethodGet, "/api/v1/auth/resume?token="+loginResp.Data.SessionToken, nil)
	r.ServeHTTP(w, resumeAgain)
	req.Equal(http.StatusUnauthorized, w.Code)

	// 重新登录开启新的会话序号
	again := doLogin(t, r, `{"userId":"P001","password":"abcd"}`)
	req.Equal(http.StatusOK, again.Code)
	var againResp struct {
		Data struct {
			SessionCount int `json:"sessionCount"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(again.Body.Bytes(), &againResp))
	req.Equal(2, againResp.Data.SessionCount)
}
