package parser

import (
	"fmt"

	"github.com/shopspring/decimal"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
)

// LedgerSpec 台账结构定义
type LedgerSpec struct {
	Kind           model.LedgerKind
	Sheet          string
	ProductColumn  string
	DateColumn     string
	QuantityColumn string
}

// DefaultOrderSpec 订单台账默认结构
func DefaultOrderSpec() LedgerSpec {
	return LedgerSpec{
		Kind:           model.LedgerOrder,
		Sheet:          "Sheet",
		ProductColumn:  "品名",
		DateColumn:     "客户要求交期",
		QuantityColumn: "订单数量",
	}
}

// DefaultShipmentSpec 出货台账默认结构
func DefaultShipmentSpec() LedgerSpec {
	return LedgerSpec{
		Kind:           model.LedgerShipment,
		Sheet:          "原表",
		ProductColumn:  "品名",
		DateColumn:     "交易日期",
		QuantityColumn: "数量",
	}
}

func (s LedgerSpec) required() []string {
	return []string{s.ProductColumn, s.DateColumn, s.QuantityColumn}
}

func (s LedgerSpec) role() string {
	return s.Kind.Label() + "台账"
}

// LedgerSet 台账解析结果
type LedgerSet struct {
	FileName    string
	Kind        model.LedgerKind
	Sheet       string
	HeaderRow   int
	Facts       []model.LedgerFact
	Attributes  map[string]model.Attributes
	SourceRows  int
	DroppedRows int
	Warnings    []string
}

// LedgerParser 订单/出货台账解析器
type LedgerParser struct {
	resolver *mapping.Resolver
	scanRows int
}

// NewLedgerParser 创建台账解析器
func NewLedgerParser(resolver *mapping.Resolver, scanRows int) *LedgerParser {
	if resolver == nil {
		resolver = mapping.NewResolver(nil, "")
	}
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}
	return &LedgerParser{resolver: resolver, scanRows: scanRows}
}

type ledgerKey struct {
	product string
	month   model.MonthKey
}

// Parse 解析台账文件，按 (品名, 月份) 汇总数量
func (p *LedgerParser) Parse(file model.SourceFile, spec LedgerSpec) (*LedgerSet, error) {
	sheets, err := readWorkbook(file)
	if err != nil {
		return nil, fmt.Errorf("%s「%s」: %w", spec.role(), file.Name, err)
	}

	sheet, exact, ok := pickNamedSheet(sheets, spec.Sheet)
	if !ok {
		return nil, &MissingRequiredColumnError{File: file.Name, Role: spec.role(), Columns: spec.required()}
	}

	set := &LedgerSet{
		FileName:   file.Name,
		Kind:       spec.Kind,
		Sheet:      sheet.Name,
		Attributes: make(map[string]model.Attributes),
	}
	if !exact && sheet.Name != csvSheetName {
		set.Warnings = append(set.Warnings, fmt.Sprintf("未找到 Sheet「%s」，使用第一个 Sheet「%s」", spec.Sheet, sheet.Name))
	}

	policy := LedgerHeaderPolicy(p.scanRows, spec.required()...)
	header, err := policy.Detect(sheet.Rows)
	if err != nil {
		return nil, &MissingRequiredColumnError{
			File:    file.Name,
			Role:    spec.role(),
			Columns: missingColumns(sheet.Rows, spec.required()),
		}
	}
	set.HeaderRow = header.Row

	headers := header.Headers
	productCol := findExactCol(headers, spec.ProductColumn)
	dateCol := findExactCol(headers, spec.DateColumn)
	qtyCol := findExactCol(headers, spec.QuantityColumn)
	waferCol := findFirstCol(headers, "晶圆品名", "晶圆")
	specCol := findFirstCol(headers, "规格")

	sums := make(map[ledgerKey]decimal.Decimal)
	var order []ledgerKey

	for _, row := range sheet.Rows[header.Row+1:] {
		raw := getCell(row, productCol)
		if raw == "" {
			continue
		}
		set.SourceRows++

		month, ok := ParseLedgerMonth(getCell(row, dateCol))
		if !ok {
			set.DroppedRows++
			continue
		}
		product := p.resolver.Resolve(raw)

		attrs := model.Attributes{WaferName: getCell(row, waferCol), Spec: getCell(row, specCol)}
		if !attrs.IsEmpty() {
			set.Attributes[product] = set.Attributes[product].Merge(attrs)
		}

		key := ledgerKey{product: product, month: month}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] = sums[key].Add(parseQuantity(getCell(row, qtyCol)))
	}

	if set.DroppedRows > 0 {
		set.Warnings = append(set.Warnings, fmt.Sprintf("%d 行日期无法解析，已忽略", set.DroppedRows))
	}

	set.Facts = make([]model.LedgerFact, 0, len(order))
	for _, key := range order {
		set.Facts = append(set.Facts, model.LedgerFact{
			ProductID: key.product,
			Month:     key.month,
			Quantity:  sums[key],
		})
	}
	return set, nil
}

// missingColumns 计算首个非空行缺失的必需列
func missingColumns(rows [][]string, required []string) []string {
	var headers []string
	for _, row := range rows {
		if len(row) > 0 {
			headers = row
			break
		}
	}
	var missing []string
	for _, col := range required {
		if findExactCol(headers, col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return required
	}
	return missing
}
