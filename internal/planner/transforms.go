package planner

import (
	"masterplan/internal/model"
)

// TrimOutOfHorizon 去掉没有任何预测列的月份的订单/出货列，返回新表
func TrimOutOfHorizon(t *MasterTable) *MasterTable {
	forecastMonths := make(map[model.MonthKey]struct{})
	for _, c := range t.Columns {
		if c.Kind == ColumnForecast {
			forecastMonths[c.Month] = struct{}{}
		}
	}

	var columns []ColumnKey
	for _, c := range t.Columns {
		if c.Kind != ColumnForecast {
			if _, ok := forecastMonths[c.Month]; !ok {
				continue
			}
		}
		columns = append(columns, c)
	}

	var months []model.MonthKey
	for _, m := range t.Months {
		if _, ok := forecastMonths[m]; ok {
			months = append(months, m)
		}
	}

	return t.project(columns, months, t.Rows)
}

// DropZeroRows 去掉所有数据列均为 0 的行，返回新表
func DropZeroRows(t *MasterTable) *MasterTable {
	var rows []*Row
	for _, r := range t.Rows {
		if !r.IsZero(t.Columns) {
			rows = append(rows, r)
		}
	}
	return t.project(t.Columns, t.Months, rows)
}

// Apply 按策略依次执行后处理
func Apply(t *MasterTable, policy Policy) *MasterTable {
	if policy.TrimOutOfHorizon {
		t = TrimOutOfHorizon(t)
	}
	if policy.DropZeroRows {
		t = DropZeroRows(t)
	}
	return t
}

func (t *MasterTable) project(columns []ColumnKey, months []model.MonthKey, rows []*Row) *MasterTable {
	out := &MasterTable{
		Columns:  append([]ColumnKey{}, columns...),
		Months:   append([]model.MonthKey{}, months...),
		Vintages: append([]model.MonthKey{}, t.Vintages...),
		Warnings: append([]Warning{}, t.Warnings...),
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, r.clone(columns))
	}
	return out
}
