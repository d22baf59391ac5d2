package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
)

// MappingOnlyRows 仅在映射表中出现的料号如何处理
type MappingOnlyRows string

const (
	MappingOnlyDrop MappingOnlyRows = "drop"
	MappingOnlyKeep MappingOnlyRows = "keep"
)

// AttributeSource 属性来源
type AttributeSource string

const (
	SourceMapping  AttributeSource = "mapping"
	SourceOrder    AttributeSource = "order"
	SourceShipment AttributeSource = "shipment"
	SourceForecast AttributeSource = "forecast"
)

// Policy 构建策略
type Policy struct {
	MappingOnlyRows     MappingOnlyRows
	AttributePrecedence []AttributeSource
	TrimOutOfHorizon    bool
	DropZeroRows        bool
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		MappingOnlyRows:     MappingOnlyDrop,
		AttributePrecedence: []AttributeSource{SourceMapping, SourceOrder, SourceShipment, SourceForecast},
	}
}

// ForecastBatch 单个预测文件的事实
type ForecastBatch struct {
	Source string
	// Products 文件中出现的全部规范品名，含预测单元格全为空的行
	Products   []string
	Facts      []model.ForecastFact
	Attributes map[string]model.Attributes
}

// LedgerBatch 台账事实
type LedgerBatch struct {
	Source     string
	Facts      []model.LedgerFact
	Attributes map[string]model.Attributes
}

// Input 构建输入
type Input struct {
	// Mapping 本次运行的料号解析器，新料号与映射属性经它归并后再使用
	Mapping   *mapping.Resolver
	Forecasts []ForecastBatch
	Orders    LedgerBatch
	Shipments LedgerBatch
}

// Builder 主表构建器
type Builder struct {
	policy Policy
}

// NewBuilder 创建构建器
func NewBuilder(policy Policy) *Builder {
	if policy.MappingOnlyRows == "" {
		policy.MappingOnlyRows = MappingOnlyDrop
	}
	if len(policy.AttributePrecedence) == 0 {
		policy.AttributePrecedence = DefaultPolicy().AttributePrecedence
	}
	return &Builder{policy: policy}
}

// Build 构建主表
func (b *Builder) Build(in Input) *MasterTable {
	table := &MasterTable{}
	var canon *mapping.Table
	if in.Mapping != nil {
		canon = in.Mapping.CanonicalTable()
	}

	rows := make(map[string]*Row)
	rowFor := func(product string) *Row {
		r, ok := rows[product]
		if !ok {
			r = newRow(model.ProductIdentity{CanonicalName: product})
			rows[product] = r
		}
		return r
	}

	var months []model.MonthKey
	forecastCols := make(map[ColumnKey]struct{})

	for _, f := range in.Orders.Facts {
		rowFor(f.ProductID).add(OrderColumn(f.Month), f.Quantity)
		months = append(months, f.Month)
	}
	for _, f := range in.Shipments.Facts {
		rowFor(f.ProductID).add(ShipmentColumn(f.Month), f.Quantity)
		months = append(months, f.Month)
	}

	// 同一 (品名, 预测月, 生成月) 多文件重复时后写入者生效
	vintageSource := make(map[model.MonthKey]string)
	warned := make(map[string]struct{})
	for _, batch := range in.Forecasts {
		for _, p := range batch.Products {
			rowFor(p)
		}
		for _, f := range batch.Facts {
			key := ForecastColumn(f.ForecastMonth, f.GenerationMonth)
			rowFor(f.ProductID).set(key, f.Quantity)
			forecastCols[key] = struct{}{}
			months = append(months, f.ForecastMonth)
			if prev, ok := vintageSource[f.GenerationMonth]; ok && prev != batch.Source {
				b.warnDuplicateVintage(table, warned, f.GenerationMonth, prev, batch.Source)
			}
			vintageSource[f.GenerationMonth] = batch.Source
		}
	}

	if b.policy.MappingOnlyRows == MappingOnlyKeep && canon != nil {
		for _, id := range canon.NewIDs {
			rowFor(id)
		}
	}

	// 连续月份轴
	if len(months) > 0 {
		first := lo.MinBy(months, func(a, b model.MonthKey) bool { return a.Before(b) })
		last := lo.MaxBy(months, func(a, b model.MonthKey) bool { return b.Before(a) })
		table.Months = model.MonthRange(first, last)
	}

	for _, m := range table.Months {
		table.Columns = append(table.Columns, OrderColumn(m), ShipmentColumn(m))
	}
	for key := range forecastCols {
		table.Columns = append(table.Columns, key)
	}
	sort.SliceStable(table.Columns, func(i, j int) bool { return table.Columns[i].Less(table.Columns[j]) })

	table.Vintages = lo.Keys(vintageSource)
	sort.Slice(table.Vintages, func(i, j int) bool { return table.Vintages[i].Before(table.Vintages[j]) })

	for product, r := range rows {
		r.Identity = b.resolveIdentity(product, in, canon)
		table.Rows = append(table.Rows, r)
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		return table.Rows[i].Identity.CanonicalName < table.Rows[j].Identity.CanonicalName
	})

	// 所有已声明列显式补 0
	for _, r := range table.Rows {
		for _, c := range table.Columns {
			if _, ok := r.values[c]; !ok {
				r.values[c] = decimal.Zero
			}
		}
	}

	return table
}

func (b *Builder) warnDuplicateVintage(table *MasterTable, warned map[string]struct{}, gen model.MonthKey, prev, cur string) {
	id := gen.String() + "|" + prev + "|" + cur
	if _, ok := warned[id]; ok {
		return
	}
	warned[id] = struct{}{}
	table.Warnings = append(table.Warnings, Warning{
		Kind:    WarningDuplicateVintage,
		Message: fmt.Sprintf("预测版本 %s 同时出现在「%s」与「%s」，重复单元格以后者为准", gen, prev, cur),
		Source:  cur,
	})
}

// resolveIdentity 按优先级逐个属性取第一个非空值
func (b *Builder) resolveIdentity(product string, in Input, canon *mapping.Table) model.ProductIdentity {
	var attrs model.Attributes
	for _, src := range b.policy.AttributePrecedence {
		for _, candidate := range b.attributeCandidates(src, product, in, canon) {
			attrs = attrs.Merge(candidate)
		}
	}
	return model.ProductIdentity{
		CanonicalName: product,
		WaferName:     strings.TrimSpace(attrs.WaferName),
		Spec:          strings.TrimSpace(attrs.Spec),
	}
}

func (b *Builder) attributeCandidates(src AttributeSource, product string, in Input, canon *mapping.Table) []model.Attributes {
	switch src {
	case SourceMapping:
		if canon != nil {
			return []model.Attributes{canon.Attributes[product]}
		}
	case SourceOrder:
		return []model.Attributes{in.Orders.Attributes[product]}
	case SourceShipment:
		return []model.Attributes{in.Shipments.Attributes[product]}
	case SourceForecast:
		out := make([]model.Attributes, 0, len(in.Forecasts))
		for _, f := range in.Forecasts {
			out = append(out, f.Attributes[product])
		}
		return out
	}
	return nil
}
