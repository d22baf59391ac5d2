package exporter

import (
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"masterplan/internal/model"
	"masterplan/internal/planner"
)

const (
	SheetAnalysis = "预测分析"
	SheetVintage  = "预测展示"
	SheetDetail   = "明细"

	headerRows    = 2
	identityCols  = 3
	maxHyperlinks = 65530 // Excel 单表超链接上限
)

// 月份分组表头轮换色
var groupPalette = []string{"#DDEBF7", "#FCE4D6", "#E2EFDA", "#FFF2CC", "#EDE7F6", "#D9E1F2"}

const highlightColor = "#FFC7CE"

// Renderer 主计划工作簿渲染器
type Renderer struct{}

// NewRenderer 创建渲染器
func NewRenderer() *Renderer {
	return &Renderer{}
}

type renderStyles struct {
	identityHeader int
	groupHeaders   []int
	number         int
	highlight      int
	text           int
}

// cellRef 明细表定位键
type cellRef struct {
	product string
	column  planner.ColumnKey
}

// Render 生成工作簿
func (r *Renderer) Render(table *planner.MasterTable, progress func(ProgressEvent)) (*excelize.File, error) {
	f := excelize.NewFile()

	reportStage(progress, stageInit)
	if err := f.SetSheetName(f.GetSheetName(0), SheetAnalysis); err != nil {
		_ = f.Close()
		return nil, err
	}
	for _, name := range []string{SheetVintage, SheetDetail} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	styles, err := newRenderStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	reportStage(progress, stageDetail)
	detailRows, err := writeDetailSheet(f, table, styles)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入明细失败: %w", err)
	}

	reportStage(progress, stageAnalysis)
	if err := writeAnalysisSheet(f, table, styles, detailRows); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入预测分析失败: %w", err)
	}

	reportStage(progress, stageVintage)
	if err := writeVintageSheet(f, table, styles); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入预测展示失败: %w", err)
	}

	f.SetActiveSheet(0)
	reportStage(progress, stageDone)
	return f, nil
}

// Write 渲染并写出到 w
func (r *Renderer) Write(w io.Writer, table *planner.MasterTable, progress func(ProgressEvent)) error {
	f, err := r.Render(table, progress)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveAs 渲染并保存到文件
func (r *Renderer) SaveAs(path string, table *planner.MasterTable, progress func(ProgressEvent)) error {
	f, err := r.Render(table, progress)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func newRenderStyles(f *excelize.File) (renderStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#BFBFBF", Style: 1},
		{Type: "right", Color: "#BFBFBF", Style: 1},
		{Type: "top", Color: "#BFBFBF", Style: 1},
		{Type: "bottom", Color: "#BFBFBF", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	numFmt := "#,##0.##"

	var s renderStyles
	var err error
	if s.identityHeader, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: center,
		Border:    border,
	}); err != nil {
		return s, err
	}
	for _, color := range groupPalette {
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: center,
			Border:    border,
		})
		if err != nil {
			return s, err
		}
		s.groupHeaders = append(s.groupHeaders, id)
	}
	if s.number, err = f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt, Border: border}); err != nil {
		return s, err
	}
	if s.highlight, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
		Border:       border,
		Fill:         excelize.Fill{Type: "pattern", Color: []string{highlightColor}, Pattern: 1},
	}); err != nil {
		return s, err
	}
	if s.text, err = f.NewStyle(&excelize.Style{Border: border}); err != nil {
		return s, err
	}
	return s, nil
}

// monthGroup 同一月份的连续列
type monthGroup struct {
	month   model.MonthKey
	columns []planner.ColumnKey
}

func groupByMonth(columns []planner.ColumnKey) []monthGroup {
	var groups []monthGroup
	for _, c := range columns {
		if n := len(groups); n > 0 && groups[n-1].month == c.Month {
			groups[n-1].columns = append(groups[n-1].columns, c)
			continue
		}
		groups = append(groups, monthGroup{month: c.Month, columns: []planner.ColumnKey{c}})
	}
	return groups
}

// SubHeader 第二行表头文本
func SubHeader(c planner.ColumnKey) string {
	switch c.Kind {
	case planner.ColumnForecast:
		return fmt.Sprintf("%s生成预测", c.Generation)
	case planner.ColumnOrder:
		return "订单"
	default:
		return "出货"
	}
}

func writeIdentityHeader(f *excelize.File, sheet string, styles renderStyles) error {
	for i, name := range planner.IdentityColumns {
		top, _ := excelize.CoordinatesToCellName(i+1, 1)
		bottom, _ := excelize.CoordinatesToCellName(i+1, headerRows)
		if err := f.SetCellValue(sheet, top, name); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, top, bottom); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, top, bottom, styles.identityHeader); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 16); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 22); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      identityCols,
		YSplit:      headerRows,
		TopLeftCell: "D3",
		ActivePane:  "bottomRight",
	})
}

func writeIdentityCells(f *excelize.File, sheet string, rowNum int, id model.ProductIdentity, style int) error {
	values := []string{id.WaferName, id.Spec, id.CanonicalName}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, rowNum)
	last, _ := excelize.CoordinatesToCellName(identityCols, rowNum)
	return f.SetCellStyle(sheet, first, last, style)
}

// writeAnalysisSheet 预测分析：按月分组，预测版本 + 订单 + 出货
func writeAnalysisSheet(f *excelize.File, table *planner.MasterTable, styles renderStyles, detailRows map[cellRef]int) error {
	sheet := SheetAnalysis
	if err := writeIdentityHeader(f, sheet, styles); err != nil {
		return err
	}

	colIndex := make(map[planner.ColumnKey]int, len(table.Columns))
	monthColumns := make(map[model.MonthKey][]planner.ColumnKey)
	col := identityCols + 1
	for gi, g := range groupByMonth(table.Columns) {
		monthColumns[g.month] = g.columns
		style := styles.groupHeaders[gi%len(styles.groupHeaders)]
		first, _ := excelize.CoordinatesToCellName(col, 1)
		last, _ := excelize.CoordinatesToCellName(col+len(g.columns)-1, 1)
		if err := f.SetCellValue(sheet, first, g.month.String()); err != nil {
			return err
		}
		if len(g.columns) > 1 {
			if err := f.MergeCell(sheet, first, last); err != nil {
				return err
			}
		}
		for _, c := range g.columns {
			cell, _ := excelize.CoordinatesToCellName(col, 2)
			if err := f.SetCellValue(sheet, cell, SubHeader(c)); err != nil {
				return err
			}
			colIndex[c] = col
			col++
		}
		lastSub, _ := excelize.CoordinatesToCellName(col-1, 2)
		if err := f.SetCellStyle(sheet, first, lastSub, style); err != nil {
			return err
		}
	}
	if len(table.Columns) > 0 {
		firstName, _ := excelize.ColumnNumberToName(identityCols + 1)
		lastName, _ := excelize.ColumnNumberToName(identityCols + len(table.Columns))
		if err := f.SetColWidth(sheet, firstName, lastName, 14); err != nil {
			return err
		}
	}

	links := 0
	for i, row := range table.Rows {
		rowNum := headerRows + 1 + i
		if err := writeIdentityCells(f, sheet, rowNum, row.Identity, styles.text); err != nil {
			return err
		}
		for _, c := range table.Columns {
			v := row.Value(c)
			cell, _ := excelize.CoordinatesToCellName(colIndex[c], rowNum)
			if err := f.SetCellValue(sheet, cell, v.InexactFloat64()); err != nil {
				return err
			}
			style := styles.number
			if NeedsHighlight(row, c, monthColumns[c.Month]) {
				style = styles.highlight
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
			if target, ok := detailRows[cellRef{product: row.Identity.CanonicalName, column: c}]; ok && links < maxHyperlinks {
				if err := f.SetCellHyperLink(sheet, cell, fmt.Sprintf("%s!A%d", SheetDetail, target), "Location"); err != nil {
					return err
				}
				links++
			}
		}
	}
	return nil
}

// NeedsHighlight 预测大于 0 而当月订单为 0 时，预测单元格与同月订单单元格都标红。
// monthColumns 为 c 所在月份的全部列。
func NeedsHighlight(row *planner.Row, c planner.ColumnKey, monthColumns []planner.ColumnKey) bool {
	switch c.Kind {
	case planner.ColumnForecast:
		return row.Value(c).GreaterThan(decimal.Zero) && row.Value(planner.OrderColumn(c.Month)).IsZero()
	case planner.ColumnOrder:
		if !row.Value(c).IsZero() {
			return false
		}
		return lo.SomeBy(monthColumns, func(fc planner.ColumnKey) bool {
			return fc.Kind == planner.ColumnForecast && fc.Month == c.Month && row.Value(fc).GreaterThan(decimal.Zero)
		})
	default:
		return false
	}
}

// writeVintageSheet 预测展示：按生成版本分组
func writeVintageSheet(f *excelize.File, table *planner.MasterTable, styles renderStyles) error {
	sheet := SheetVintage
	if err := writeIdentityHeader(f, sheet, styles); err != nil {
		return err
	}

	byVintage := table.ForecastColumns()
	var ordered []planner.ColumnKey
	col := identityCols + 1
	for gi, gen := range table.Vintages {
		columns := byVintage[gen]
		if len(columns) == 0 {
			continue
		}
		style := styles.groupHeaders[gi%len(styles.groupHeaders)]
		first, _ := excelize.CoordinatesToCellName(col, 1)
		last, _ := excelize.CoordinatesToCellName(col+len(columns)-1, 1)
		if err := f.SetCellValue(sheet, first, fmt.Sprintf("%s生成", gen)); err != nil {
			return err
		}
		if len(columns) > 1 {
			if err := f.MergeCell(sheet, first, last); err != nil {
				return err
			}
		}
		for _, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(col, 2)
			if err := f.SetCellValue(sheet, cell, c.Month.String()); err != nil {
				return err
			}
			ordered = append(ordered, c)
			col++
		}
		lastSub, _ := excelize.CoordinatesToCellName(col-1, 2)
		if err := f.SetCellStyle(sheet, first, lastSub, style); err != nil {
			return err
		}
	}

	for i, row := range table.Rows {
		rowNum := headerRows + 1 + i
		if err := writeIdentityCells(f, sheet, rowNum, row.Identity, styles.text); err != nil {
			return err
		}
		for j, c := range ordered {
			cell, _ := excelize.CoordinatesToCellName(identityCols+1+j, rowNum)
			if err := f.SetCellValue(sheet, cell, row.Value(c).InexactFloat64()); err != nil {
				return err
			}
		}
		if len(ordered) > 0 {
			first, _ := excelize.CoordinatesToCellName(identityCols+1, rowNum)
			last, _ := excelize.CoordinatesToCellName(identityCols+len(ordered), rowNum)
			if err := f.SetCellStyle(sheet, first, last, styles.number); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetailHeaders 明细表表头
var DetailHeaders = []string{"品名", "月份", "类型", "生成月份", "数量"}

func kindLabel(kind model.RecordKind) string {
	switch kind {
	case model.KindForecast:
		return "预测"
	case model.KindOrder:
		return "订单"
	default:
		return "出货"
	}
}

// writeDetailSheet 明细：长表记录，返回 (品名, 列) -> 行号
func writeDetailSheet(f *excelize.File, table *planner.MasterTable, styles renderStyles) (map[cellRef]int, error) {
	sheet := SheetDetail
	header := make([]interface{}, 0, len(DetailHeaders))
	for _, h := range DetailHeaders {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", styles.identityHeader); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return nil, err
	}

	index := make(map[cellRef]int)
	rowNum := 2
	for _, row := range table.Rows {
		for _, c := range table.Columns {
			v := row.Value(c)
			if v.IsZero() {
				continue
			}
			kind := model.KindShipment
			gen := ""
			switch c.Kind {
			case planner.ColumnForecast:
				kind = model.KindForecast
				gen = c.Generation.String()
			case planner.ColumnOrder:
				kind = model.KindOrder
			}
			values := []interface{}{row.Identity.CanonicalName, c.Month.String(), kindLabel(kind), gen, v.InexactFloat64()}
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, err
			}
			index[cellRef{product: row.Identity.CanonicalName, column: c}] = rowNum
			rowNum++
		}
	}
	return index, nil
}
