package parser

import (
	"fmt"

	"github.com/shopspring/decimal"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
)

// ForecastOptions 预测表解析选项
type ForecastOptions struct {
	ScanRows      int    // 表头扫描行数
	Marker        string // 表头标记文本
	ProductColumn int    // 品名所在列 (0-based)
}

// DefaultForecastOptions 默认预测表解析选项
func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{
		ScanRows:      DefaultHeaderScanRows,
		Marker:        "产品型号",
		ProductColumn: 1,
	}
}

// ForecastSet 单个预测文件的解析结果
type ForecastSet struct {
	FileName   string
	Generation model.MonthKey
	Sheet      string
	HeaderRow  int
	Heuristic  string
	Months     []model.MonthKey
	// Products 出现过的规范品名（按首次出现顺序），含预测值全为空的行
	Products   []string
	Facts      []model.ForecastFact
	Attributes map[string]model.Attributes
	Warnings   []string
}

// ForecastParser 预测表解析器
type ForecastParser struct {
	opts     ForecastOptions
	policy   HeaderDetectionPolicy
	resolver *mapping.Resolver
}

// NewForecastParser 创建预测表解析器
func NewForecastParser(resolver *mapping.Resolver, opts ForecastOptions) *ForecastParser {
	def := DefaultForecastOptions()
	if opts.ScanRows <= 0 {
		opts.ScanRows = def.ScanRows
	}
	if opts.Marker == "" {
		opts.Marker = def.Marker
	}
	if opts.ProductColumn < 0 {
		opts.ProductColumn = def.ProductColumn
	}
	if resolver == nil {
		resolver = mapping.NewResolver(nil, "")
	}
	return &ForecastParser{
		opts:     opts,
		policy:   ForecastHeaderPolicy(opts.ScanRows, opts.Marker),
		resolver: resolver,
	}
}

type forecastColumn struct {
	index int
	month model.MonthKey
}

type forecastCellKey struct {
	product string
	month   model.MonthKey
}

// Parse 解析预测文件
func (p *ForecastParser) Parse(file model.SourceFile) (*ForecastSet, error) {
	generation, err := ParseGenerationDate(file.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}

	sheets, err := readWorkbook(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	sheet, ok := pickLongestSheet(sheets)
	if !ok {
		return nil, fmt.Errorf("%s: %w", file.Name, ErrEmptyWorkbook)
	}

	header, err := p.policy.Detect(sheet.Rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	headers := header.Headers

	var columns []forecastColumn
	for i, h := range headers {
		if month, ok := ResolveForecastMonth(h, generation); ok {
			columns = append(columns, forecastColumn{index: i, month: month})
		}
	}

	waferCol := findFirstCol(headers, "晶圆品名", "晶圆")
	specCol := findFirstCol(headers, "规格", p.opts.Marker)
	if specCol == p.opts.ProductColumn {
		specCol = -1
	}
	headerProduct := getCell(headers, p.opts.ProductColumn)

	set := &ForecastSet{
		FileName:   file.Name,
		Generation: generation,
		Sheet:      sheet.Name,
		HeaderRow:  header.Row,
		Heuristic:  header.Heuristic,
		Attributes: make(map[string]model.Attributes),
	}
	for _, c := range columns {
		set.Months = append(set.Months, c.month)
	}

	// 同一 (品名, 预测月) 在文件内重复时后出现的行生效
	values := make(map[forecastCellKey]decimal.Decimal)
	var order []forecastCellKey
	seenProducts := make(map[string]struct{})
	duplicated := make(map[forecastCellKey]struct{})

	for _, row := range sheet.Rows[header.Row+1:] {
		raw := getCell(row, p.opts.ProductColumn)
		if raw == "" || raw == headerProduct {
			continue
		}
		product := p.resolver.Resolve(raw)
		if _, ok := seenProducts[product]; !ok {
			seenProducts[product] = struct{}{}
			set.Products = append(set.Products, product)
		}

		attrs := model.Attributes{WaferName: getCell(row, waferCol), Spec: getCell(row, specCol)}
		if !attrs.IsEmpty() {
			set.Attributes[product] = set.Attributes[product].Merge(attrs)
		}

		for _, c := range columns {
			qty, present := parseOptionalQuantity(getCell(row, c.index))
			if !present {
				continue
			}
			key := forecastCellKey{product: product, month: c.month}
			if prev, seen := values[key]; !seen {
				order = append(order, key)
			} else if _, warned := duplicated[key]; !warned {
				duplicated[key] = struct{}{}
				set.Warnings = append(set.Warnings, fmt.Sprintf(
					"品名 %s 的 %s 预测（%s 生成）重复出现，以后出现的值 %s 为准（原值 %s）",
					product, c.month, generation, qty, prev))
			}
			values[key] = qty
		}
	}

	set.Facts = make([]model.ForecastFact, 0, len(order))
	for _, key := range order {
		set.Facts = append(set.Facts, model.ForecastFact{
			ProductID:       key.product,
			ForecastMonth:   key.month,
			GenerationMonth: generation,
			Quantity:        values[key],
		})
	}
	return set, nil
}
