package planner

import (
	"fmt"
	"regexp"

	"masterplan/internal/model"
)

// ColumnKind 数据列类型
type ColumnKind string

const (
	ColumnForecast ColumnKind = "forecast"
	ColumnOrder    ColumnKind = "order"
	ColumnShipment ColumnKind = "shipment"
)

// ColumnKey 数据列键
type ColumnKey struct {
	Kind       ColumnKind
	Month      model.MonthKey
	Generation model.MonthKey // 仅预测列
}

// ForecastColumn 预测列
func ForecastColumn(month, generation model.MonthKey) ColumnKey {
	return ColumnKey{Kind: ColumnForecast, Month: month, Generation: generation}
}

// OrderColumn 订单列
func OrderColumn(month model.MonthKey) ColumnKey {
	return ColumnKey{Kind: ColumnOrder, Month: month}
}

// ShipmentColumn 出货列
func ShipmentColumn(month model.MonthKey) ColumnKey {
	return ColumnKey{Kind: ColumnShipment, Month: month}
}

// String 输出列名
//
//	2025-08 forecast (2025-07 generated)
//	2025-08-order
//	2025-08-shipment
func (k ColumnKey) String() string {
	switch k.Kind {
	case ColumnForecast:
		return fmt.Sprintf("%s forecast (%s generated)", k.Month, k.Generation)
	default:
		return fmt.Sprintf("%s-%s", k.Month, k.Kind)
	}
}

// Less 列排序：按月份，同月内预测列（按版本）在前，其后订单、出货
func (k ColumnKey) Less(other ColumnKey) bool {
	if c := k.Month.Compare(other.Month); c != 0 {
		return c < 0
	}
	if k.Kind != other.Kind {
		return kindRank(k.Kind) < kindRank(other.Kind)
	}
	return k.Generation.Before(other.Generation)
}

func kindRank(kind ColumnKind) int {
	switch kind {
	case ColumnForecast:
		return 0
	case ColumnOrder:
		return 1
	default:
		return 2
	}
}

var (
	forecastColumnRe = regexp.MustCompile(`^(\d{4}-\d{2}) forecast \((\d{4}-\d{2}) generated\)$`)
	ledgerColumnRe   = regexp.MustCompile(`^(\d{4}-\d{2})-(order|shipment)$`)
)

// ParseColumnKey 解析列名
func ParseColumnKey(s string) (ColumnKey, error) {
	if m := forecastColumnRe.FindStringSubmatch(s); m != nil {
		month, err := model.ParseMonthKey(m[1])
		if err != nil {
			return ColumnKey{}, err
		}
		gen, err := model.ParseMonthKey(m[2])
		if err != nil {
			return ColumnKey{}, err
		}
		return ForecastColumn(month, gen), nil
	}
	if m := ledgerColumnRe.FindStringSubmatch(s); m != nil {
		month, err := model.ParseMonthKey(m[1])
		if err != nil {
			return ColumnKey{}, err
		}
		return ColumnKey{Kind: ColumnKind(m[2]), Month: month}, nil
	}
	return ColumnKey{}, fmt.Errorf("invalid column key %q", s)
}
