package render

import (
	"production-report/internal/model"
	"production-report/internal/selector"
)

// HeadlineRegion is the dashboard row that carries the day's headline figures.
var HeadlineRegion = model.Region{FirstRow: 5, LastRow: 5, FirstCol: 2, LastCol: 8}

// Dashboard cell styles.
var (
	HeadlineStyle         = model.Style{Bold: true, Color: "blue", FontSizePx: 20}
	DashboardDefaultStyle = model.Style{FontSizePx: 20}
)

// Record table styles.
var (
	HeaderStyle       = model.Style{Color: "blue", Background: "#ffd34c"}
	RecordStyle       = model.Style{FontSizePx: 18}
	FirstArticleStyle = model.Style{Color: "darkorange", FontSizePx: 18}
	StartupStyle      = model.Style{Color: "dodgerblue", FontSizePx: 18}
	MoldAbnormalStyle = model.Style{Color: "firebrick", FontSizePx: 18}
)

// headerStyles maps a column name to its header cell style. Columns not
// listed here get an unstyled header.
var headerStyles = func() map[string]model.Style {
	m := make(map[string]model.Style, len(model.LargeTonnageColumns))
	for _, c := range model.LargeTonnageColumns {
		m[c] = HeaderStyle
	}
	return m
}()

// HeaderStyleFor returns the header style for a column name.
func HeaderStyleFor(column string) model.Style {
	return headerStyles[column]
}

// CategoryStyle returns the record cell style for a status category.
func CategoryStyle(c model.StatusCategory) model.Style {
	switch c {
	case model.CategoryFirstArticle:
		return FirstArticleStyle
	case model.CategoryStartup:
		return StartupStyle
	case model.CategoryMoldAbnormal:
		return MoldAbnormalStyle
	default:
		return RecordStyle
	}
}

// Dashboard renders selector.DashboardRegion of the dashboard sheet. The
// headline row is bold blue, every other cell uses the larger default font.
func Dashboard(tbl *model.Table) *model.StyledTable {
	out := &model.StyledTable{Kind: model.TableRegion}
	for _, row := range selector.SelectRegion(tbl, selector.DashboardRegion) {
		cells := make([]model.FormattedCell, len(row))
		for i, rc := range row {
			style := DashboardDefaultStyle
			if HeadlineRegion.Contains(rc.Ref) {
				style = HeadlineStyle
			}
			cells[i] = model.FormattedCell{Display: FormatCell(rc.Value, rc.Ref), Style: style}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// Records renders an equipment list with one header row. Each cell is
// colored by its own value, so only the cell holding a category label is
// highlighted.
func Records(list *model.EquipmentList) *model.StyledTable {
	out := &model.StyledTable{Kind: model.TableRecords}
	if list == nil {
		return out
	}
	out.Header = make([]model.FormattedCell, len(list.Columns))
	for i, c := range list.Columns {
		out.Header[i] = model.FormattedCell{Display: c, Style: HeaderStyleFor(c)}
	}
	for _, rec := range list.Records {
		cells := make([]model.FormattedCell, len(rec.Values))
		for i, v := range rec.Values {
			cells[i] = model.FormattedCell{
				Display: CollapseLineBreaks(v),
				Style:   CategoryStyle(model.ClassifyStatus(v)),
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}
