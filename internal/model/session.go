package model

import "time"

// Session 代表一次从登录到登出（或被清理）的连续交互期。
// SessionToken 是不透明 bearer 令牌，浏览器通过 Cookie 或 URL 参数携带以恢复会话。
type Session struct {
	SessionID     string     `gorm:"primaryKey;size:36" json:"sessionId"`
	UserID        string     `gorm:"not null;size:64;index" json:"userId"`
	StartTime     time.Time  `gorm:"not null" json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	TotalMessages int        `gorm:"not null;default:0" json:"totalMessages"`
	SessionCount  int        `gorm:"not null" json:"sessionCount"` // 该参与者的第几次会话
	SessionToken  string     `gorm:"not null;uniqueIndex;size:64" json:"-"`
	LastAccessed  time.Time  `gorm:"not null;index" json:"lastAccessed"`
	IsActive      bool       `gorm:"not null;default:true;index" json:"isActive"`
}

func (Session) TableName() string {
	return "sessions"
}
