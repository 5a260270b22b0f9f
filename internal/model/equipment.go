package model

// Raw data column names used by the equipment selections.
const (
	ColumnGroup         = "Group"
	ColumnAreaCode      = "區域代碼"
	ColumnMachineNo     = "機台號碼"
	ColumnEquipStatus   = "目前設備狀況"
	ColumnProdCategory  = "生產狀況類別"
	ColumnProjectName   = "專案名稱"
	ColumnMoldNo        = "模號"
	ColumnPartName      = "品名"
	ColumnPriority      = "priority"
	ColumnProdNote      = "生產狀況敘述"
	ColumnRemark        = "備註"
	ColumnDCCCycle      = "dcc週秒"
	ColumnActualCycle   = "實際週秒"
	ColumnCycleDiffNote = "週秒差異備註"
	ColumnSizeMachine   = "sizemachine"
	ColumnScrew         = "screw"
	ColumnBrands        = "brands"
	ColumnToolingToolNo = "tooling_tool_no"
	EquipmentStatusStop = "STOP"
	MissingPlaceholder  = "-"
)

// StoppedColumns is the business subset projected for the stopped-equipment list.
var StoppedColumns = []string{
	ColumnGroup,
	ColumnAreaCode,
	ColumnMachineNo,
	ColumnEquipStatus,
	ColumnProdCategory,
	ColumnProjectName,
	ColumnMoldNo,
	ColumnPartName,
	ColumnPriority,
	ColumnProdNote,
	ColumnRemark,
}

// LargeTonnageColumns extends StoppedColumns for the large-tonnage list.
var LargeTonnageColumns = append(append([]string(nil), StoppedColumns...),
	ColumnDCCCycle,
	ColumnActualCycle,
	ColumnCycleDiffNote,
	ColumnSizeMachine,
	ColumnScrew,
	ColumnBrands,
	ColumnToolingToolNo,
)

// StatusCategory is the production status class that drives color coding.
type StatusCategory int

const (
	CategoryOther StatusCategory = iota
	CategoryFirstArticle
	CategoryStartup
	CategoryMoldAbnormal
)

// Literal category values as they appear in the workbook.
const (
	LabelFirstArticle = "首件中"
	LabelStartup      = "開機中"
	LabelMoldAbnormal = "模具異常或修模"
)

// ClassifyStatus maps a cell value to its category by exact string equality.
func ClassifyStatus(s string) StatusCategory {
	switch s {
	case LabelFirstArticle:
		return CategoryFirstArticle
	case LabelStartup:
		return CategoryStartup
	case LabelMoldAbnormal:
		return CategoryMoldAbnormal
	default:
		return CategoryOther
	}
}

// String returns the category label.
func (c StatusCategory) String() string {
	switch c {
	case CategoryFirstArticle:
		return LabelFirstArticle
	case CategoryStartup:
		return LabelStartup
	case CategoryMoldAbnormal:
		return LabelMoldAbnormal
	default:
		return "other"
	}
}

// EquipmentRecord is one raw data row restricted to a fixed column list.
// Values are already cleaned display strings aligned with EquipmentList.Columns.
type EquipmentRecord struct {
	Values   []string
	Category StatusCategory // from the 生產狀況類別 field
}

// EquipmentList is the result of one selection pipeline.
type EquipmentList struct {
	Columns []string
	Records []EquipmentRecord
}

// Len returns the number of selected records.
func (l *EquipmentList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Records)
}
