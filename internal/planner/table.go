package planner

import (
	"github.com/shopspring/decimal"

	"masterplan/internal/model"
)

// IdentityColumns 固定标识列
var IdentityColumns = []string{"晶圆品名", "规格", "品名"}

// WarningKind 构建告警类型
type WarningKind string

const (
	WarningDuplicateVintage WarningKind = "duplicate_vintage"
)

// Warning 构建告警
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Source  string      `json:"source,omitempty"`
}

// Row 主表行
type Row struct {
	Identity model.ProductIdentity
	values   map[ColumnKey]decimal.Decimal
}

func newRow(identity model.ProductIdentity) *Row {
	return &Row{Identity: identity, values: make(map[ColumnKey]decimal.Decimal)}
}

// Value 读取单元格，未写入的列为 0
func (r *Row) Value(key ColumnKey) decimal.Decimal {
	if v, ok := r.values[key]; ok {
		return v
	}
	return decimal.Zero
}

// IsZero 所有数据列是否均为 0
func (r *Row) IsZero(columns []ColumnKey) bool {
	for _, c := range columns {
		if !r.Value(c).IsZero() {
			return false
		}
	}
	return true
}

func (r *Row) set(key ColumnKey, v decimal.Decimal) {
	r.values[key] = v
}

func (r *Row) add(key ColumnKey, v decimal.Decimal) {
	r.values[key] = r.Value(key).Add(v)
}

func (r *Row) clone(columns []ColumnKey) *Row {
	out := newRow(r.Identity)
	for _, c := range columns {
		if v, ok := r.values[c]; ok {
			out.values[c] = v
		}
	}
	return out
}

// MasterTable 主计划宽表
type MasterTable struct {
	Columns  []ColumnKey
	Rows     []*Row
	Months   []model.MonthKey // 连续月份轴
	Vintages []model.MonthKey // 预测生成月份，升序
	Warnings []Warning
}

// ColumnNames 全部列名（含固定标识列）
func (t *MasterTable) ColumnNames() []string {
	names := append([]string{}, IdentityColumns...)
	for _, c := range t.Columns {
		names = append(names, c.String())
	}
	return names
}

// HasColumn 是否声明了该列
func (t *MasterTable) HasColumn(key ColumnKey) bool {
	for _, c := range t.Columns {
		if c == key {
			return true
		}
	}
	return false
}

// Row 按品名查找行
func (t *MasterTable) Row(product string) (*Row, bool) {
	for _, r := range t.Rows {
		if r.Identity.CanonicalName == product {
			return r, true
		}
	}
	return nil, false
}

// ForecastColumns 按版本分组的预测列
func (t *MasterTable) ForecastColumns() map[model.MonthKey][]ColumnKey {
	out := make(map[model.MonthKey][]ColumnKey)
	for _, c := range t.Columns {
		if c.Kind == ColumnForecast {
			out[c.Generation] = append(out[c.Generation], c)
		}
	}
	return out
}

// Records 展开为长表记录（仅非零值）
func (t *MasterTable) Records() []model.Record {
	var out []model.Record
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			v := r.Value(c)
			if v.IsZero() {
				continue
			}
			rec := model.Record{
				ProductID: r.Identity.CanonicalName,
				Month:     c.Month,
				Quantity:  v,
			}
			switch c.Kind {
			case ColumnForecast:
				gen := c.Generation
				rec.Kind = model.KindForecast
				rec.GenerationMonth = &gen
			case ColumnOrder:
				rec.Kind = model.KindOrder
			case ColumnShipment:
				rec.Kind = model.KindShipment
			}
			out = append(out, rec)
		}
	}
	return out
}
