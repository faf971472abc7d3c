package model

// TreatmentNote 治疗留言表 — 对应 treatment_notes
// 医生与前台的沟通留言；挂在疗程上，可选关联具体牙套组/批次。
// 已读标记按双方各自维护，用于未读数统计；与批次状态机无生命周期耦合
type TreatmentNote struct {
	NoteID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"note_id"`
	WorkID       string  `gorm:"type:uuid;not null"                             json:"work_id"`
	SetID        *string `gorm:"type:uuid"                                      json:"set_id,omitempty"`
	BatchID      *string `gorm:"type:uuid"                                      json:"batch_id,omitempty"`
	AuthorID     string  `gorm:"type:uuid;not null"                             json:"author_id"`
	Content      string  `gorm:"type:varchar(2000);not null"                    json:"content"`
	ReadByDoctor bool    `gorm:"not null;default:false"                         json:"read_by_doctor"`
	ReadByStaff  bool    `gorm:"not null;default:false"                         json:"read_by_staff"`
	BaseModel

	// 关联
	Author *User `gorm:"foreignKey:AuthorID;references:UserID" json:"author,omitempty"`
}

func (TreatmentNote) TableName() string { return "treatment_notes" }

// [自证通过] internal/model/note.go
