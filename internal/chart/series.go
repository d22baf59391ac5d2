package chart

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"masterplan/internal/model"
	"masterplan/internal/planner"
)

// VintageLine 单个预测版本的折线
type VintageLine struct {
	Generation model.MonthKey `json:"generation"`
	Label      string         `json:"label"`
	Values     []float64      `json:"values"`
}

// Series 图表数据：订单/出货柱 + 各版本预测线
type Series struct {
	Product   string           `json:"product"`
	Months    []model.MonthKey `json:"months"`
	Orders    []float64        `json:"orders"`
	Shipments []float64        `json:"shipments"`
	Forecasts []VintageLine    `json:"forecasts"`
}

func newSeries(product string, months []model.MonthKey) *Series {
	return &Series{
		Product:   product,
		Months:    months,
		Orders:    make([]float64, len(months)),
		Shipments: make([]float64, len(months)),
		Forecasts: []VintageLine{},
	}
}

func vintageLabel(gen model.MonthKey) string {
	return fmt.Sprintf("%s生成预测", gen)
}

// FromTable 从主表取单个产品的序列
func FromTable(table *planner.MasterTable, product string) (*Series, bool) {
	row, ok := table.Row(product)
	if !ok {
		return nil, false
	}

	s := newSeries(product, append([]model.MonthKey{}, table.Months...))
	for i, m := range s.Months {
		s.Orders[i] = row.Value(planner.OrderColumn(m)).InexactFloat64()
		s.Shipments[i] = row.Value(planner.ShipmentColumn(m)).InexactFloat64()
	}
	for _, gen := range table.Vintages {
		line := VintageLine{Generation: gen, Label: vintageLabel(gen), Values: make([]float64, len(s.Months))}
		for i, m := range s.Months {
			line.Values[i] = row.Value(planner.ForecastColumn(m, gen)).InexactFloat64()
		}
		s.Forecasts = append(s.Forecasts, line)
	}
	return s, true
}

// FromRecords 从长表记录构造序列；months 为空时取记录覆盖的连续月份
func FromRecords(months []model.MonthKey, records []model.Record, product string) *Series {
	own := lo.Filter(records, func(r model.Record, _ int) bool {
		return r.ProductID == product
	})

	if len(months) == 0 && len(own) > 0 {
		first := lo.MinBy(own, func(a, b model.Record) bool { return a.Month.Before(b.Month) })
		last := lo.MaxBy(own, func(a, b model.Record) bool { return a.Month.Compare(b.Month) > 0 })
		months = model.MonthRange(first.Month, last.Month)
	}

	s := newSeries(product, months)
	pos := make(map[model.MonthKey]int, len(months))
	for i, m := range months {
		pos[m] = i
	}

	lines := make(map[model.MonthKey][]decimal.Decimal)
	orders := make([]decimal.Decimal, len(months))
	shipments := make([]decimal.Decimal, len(months))
	for _, r := range own {
		i, ok := pos[r.Month]
		if !ok {
			continue
		}
		switch r.Kind {
		case model.KindOrder:
			orders[i] = orders[i].Add(r.Quantity)
		case model.KindShipment:
			shipments[i] = shipments[i].Add(r.Quantity)
		case model.KindForecast:
			if r.GenerationMonth == nil {
				continue
			}
			gen := *r.GenerationMonth
			if _, ok := lines[gen]; !ok {
				lines[gen] = make([]decimal.Decimal, len(months))
			}
			lines[gen][i] = lines[gen][i].Add(r.Quantity)
		}
	}

	for i := range months {
		s.Orders[i] = orders[i].InexactFloat64()
		s.Shipments[i] = shipments[i].InexactFloat64()
	}

	gens := lo.Keys(lines)
	sort.Slice(gens, func(i, j int) bool { return gens[i].Before(gens[j]) })
	for _, gen := range gens {
		line := VintageLine{Generation: gen, Label: vintageLabel(gen), Values: make([]float64, len(months))}
		for i, v := range lines[gen] {
			line.Values[i] = v.InexactFloat64()
		}
		s.Forecasts = append(s.Forecasts, line)
	}
	return s
}
