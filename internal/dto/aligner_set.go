package dto

// ── 牙套组模块 DTO ──

// CreateAlignerSetRequest 创建牙套组请求
// 上下颌数量缺省为 0；is_active=true 时同疗程的其他组会被同事务取消激活
type CreateAlignerSetRequest struct {
	WorkID     string  `json:"work_id"     binding:"required,uuid"`
	DoctorID   string  `json:"doctor_id"   binding:"required,uuid"`
	UpperTotal int     `json:"upper_total" binding:"omitempty,min=0,max=200"`
	LowerTotal int     `json:"lower_total" binding:"omitempty,min=0,max=200"`
	IsActive   bool    `json:"is_active"`
	Cost       float64 `json:"cost"        binding:"omitempty,min=0"`
	Currency   string  `json:"currency"    binding:"omitempty,len=3"`
}

// UpdateAlignerSetRequest 更新牙套组请求
// 调整总数时剩余数按差额同步调整；总数不允许低于已分配给批次的数量
type UpdateAlignerSetRequest struct {
	DoctorID   *string  `json:"doctor_id"   binding:"omitempty,uuid"`
	UpperTotal *int     `json:"upper_total" binding:"omitempty,min=0,max=200"`
	LowerTotal *int     `json:"lower_total" binding:"omitempty,min=0,max=200"`
	Cost       *float64 `json:"cost"        binding:"omitempty,min=0"`
	Currency   *string  `json:"currency"    binding:"omitempty,len=3"`
}

// AlignerSetResponse 牙套组信息响应
type AlignerSetResponse struct {
	ID             string                 `json:"id"`
	WorkID         string                 `json:"work_id"`
	DoctorID       string                 `json:"doctor_id"`
	DoctorName     string                 `json:"doctor_name,omitempty"`
	Sequence       int                    `json:"sequence"`
	UpperTotal     int                    `json:"upper_total"`
	LowerTotal     int                    `json:"lower_total"`
	UpperRemaining int                    `json:"upper_remaining"`
	LowerRemaining int                    `json:"lower_remaining"`
	IsActive       bool                   `json:"is_active"`
	Cost           float64                `json:"cost"`
	Currency       string                 `json:"currency"`
	Batches        []AlignerBatchResponse `json:"batches,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

// [自证通过] internal/dto/aligner_set.go
