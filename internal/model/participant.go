// Package model 包含了应用的数据模型定义。
package model

import "time"

// 参与者分组。admin 分组同时承担管理后台账号的角色。
const (
	GroupTreatment = "treatment"
	GroupControl   = "control"
	GroupAdmin     = "admin"
)

// 参与者生命周期状态。
const (
	StatusActive    = "active"
	StatusDropout   = "dropout"
	StatusCompleted = "completed"
)

// 年龄约束，与研究纳入标准一致。
const (
	MinAge = 18
	MaxAge = 100
)

// Participant 代表一名研究参与者或管理员账号。
type Participant struct {
	UserID       string     `gorm:"primaryKey;size:64" json:"userId"`
	Password     string     `gorm:"not null" json:"-"` // bcrypt 哈希，不出现在任何响应中
	Name         string     `gorm:"not null;size:64" json:"name"`
	GroupType    string     `gorm:"not null;size:16;index" json:"group"`
	EnrolledDate time.Time  `gorm:"not null" json:"enrolledDate"`
	SessionLimit int        `gorm:"not null;default:8" json:"sessionLimit"`
	Status       string     `gorm:"not null;size:16;default:active" json:"status"`
	Phone        *string    `gorm:"size:32" json:"phone,omitempty"`
	Gender       *string    `gorm:"size:16" json:"gender,omitempty"`
	Age          *int       `json:"age,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Participant) TableName() string {
	return "participants"
}

// IsAdmin 判断该账号是否属于管理员分组。
func (p *Participant) IsAdmin() bool {
	return p.GroupType == GroupAdmin
}

// ValidGroup 判断分组取值是否合法。
func ValidGroup(group string) bool {
	return group == GroupTreatment || group == GroupControl || group == GroupAdmin
}

// ValidStatus 判断状态取值是否合法。
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusDropout || status == StatusCompleted
}

// ParticipantStats 是参与者列表页使用的联表统计行。
type ParticipantStats struct {
	UserID               string     `json:"userId"`
	Name                 string     `json:"name"`
	GroupType            string     `json:"group"`
	Status               string     `json:"status"`
	EnrolledDate         time.Time  `json:"enrolledDate"`
	SessionLimit         int        `json:"sessionLimit"`
	Phone                *string    `json:"phone,omitempty"`
	Gender               *string    `json:"gender,omitempty"`
	Age                  *int       `json:"age,omitempty"`
	CompletedSessions    int64      `json:"completedSessions"`
	TotalMessages        int64      `json:"totalMessages"`
	LastSessionStartedAt *time.Time `json:"lastSessionStartedAt,omitempty"`
}

// SummaryStats 是研究整体的汇总统计。
type SummaryStats struct {
	TotalParticipants        int64   `json:"totalParticipants"`
	ActiveParticipants       int64   `json:"activeParticipants"`
	TreatmentGroup           int64   `json:"treatmentGroup"`
	ControlGroup             int64   `json:"controlGroup"`
	CompletedParticipants    int64   `json:"completedParticipants"`
	DropoutParticipants      int64   `json:"dropoutParticipants"`
	AvgSessionsPerParticipant float64 `json:"avgSessionsPerParticipant"`
}
