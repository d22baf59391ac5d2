package planner

import (
	"testing"

	"github.com/shopspring/decimal"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
)

func mk(year, month int) model.MonthKey {
	return model.MonthKey{Year: year, Month: month}
}

func qty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func mustRow(t *testing.T, table *MasterTable, product string) *Row {
	t.Helper()
	r, ok := table.Row(product)
	if !ok {
		t.Fatalf("row %q not found", product)
	}
	return r
}

func assertValue(t *testing.T, r *Row, key ColumnKey, want int64) {
	t.Helper()
	if got := r.Value(key); !got.Equal(qty(want)) {
		t.Fatalf("%s[%s]=%s, want %d", r.Identity.CanonicalName, key, got, want)
	}
}

func TestBuild_VintagesStayDistinct(t *testing.T) {
	t.Parallel()

	in := Input{
		Forecasts: []ForecastBatch{
			{Source: "预测20250715.xlsx", Facts: []model.ForecastFact{
				{ProductID: "P1", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(100)},
			}},
			{Source: "预测20250805.xlsx", Facts: []model.ForecastFact{
				{ProductID: "P1", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 8), Quantity: qty(120)},
			}},
		},
	}

	table := NewBuilder(DefaultPolicy()).Build(in)
	r := mustRow(t, table, "P1")
	assertValue(t, r, ForecastColumn(mk(2025, 8), mk(2025, 7)), 100)
	assertValue(t, r, ForecastColumn(mk(2025, 8), mk(2025, 8)), 120)

	if len(table.Vintages) != 2 || table.Vintages[0] != mk(2025, 7) || table.Vintages[1] != mk(2025, 8) {
		t.Fatalf("Vintages=%v", table.Vintages)
	}
	if len(table.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", table.Warnings)
	}
}

func TestBuild_MonthAxisHasNoGaps(t *testing.T) {
	t.Parallel()

	in := Input{
		Orders: LedgerBatch{Facts: []model.LedgerFact{
			{ProductID: "A", Month: mk(2025, 1), Quantity: qty(5)},
		}},
		Shipments: LedgerBatch{Facts: []model.LedgerFact{
			{ProductID: "B", Month: mk(2025, 6), Quantity: qty(7)},
		}},
	}

	table := NewBuilder(DefaultPolicy()).Build(in)
	if len(table.Months) != 6 {
		t.Fatalf("Months=%v, want 2025-01..2025-06", table.Months)
	}
	for _, m := range model.MonthRange(mk(2025, 1), mk(2025, 6)) {
		if !table.HasColumn(OrderColumn(m)) || !table.HasColumn(ShipmentColumn(m)) {
			t.Fatalf("missing order/shipment columns for %s", m)
		}
	}

	// 未写入的列读为 0
	b := mustRow(t, table, "B")
	assertValue(t, b, OrderColumn(mk(2025, 3)), 0)
	assertValue(t, b, ShipmentColumn(mk(2025, 6)), 7)
}

func TestBuild_SumsLedgerFacts(t *testing.T) {
	t.Parallel()

	in := Input{
		Orders: LedgerBatch{Facts: []model.LedgerFact{
			{ProductID: "A", Month: mk(2025, 3), Quantity: qty(50)},
			{ProductID: "A", Month: mk(2025, 3), Quantity: qty(30)},
		}},
	}
	table := NewBuilder(DefaultPolicy()).Build(in)
	assertValue(t, mustRow(t, table, "A"), OrderColumn(mk(2025, 3)), 80)
}

func TestBuild_DuplicateVintageLastWriteWins(t *testing.T) {
	t.Parallel()

	in := Input{
		Forecasts: []ForecastBatch{
			{Source: "a_20250701.xlsx", Facts: []model.ForecastFact{
				{ProductID: "P1", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(10)},
				{ProductID: "P2", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(3)},
			}},
			{Source: "b_20250720.xlsx", Facts: []model.ForecastFact{
				{ProductID: "P1", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(99)},
			}},
		},
	}

	table := NewBuilder(DefaultPolicy()).Build(in)
	key := ForecastColumn(mk(2025, 8), mk(2025, 7))
	assertValue(t, mustRow(t, table, "P1"), key, 99)
	assertValue(t, mustRow(t, table, "P2"), key, 3)

	if len(table.Warnings) != 1 || table.Warnings[0].Kind != WarningDuplicateVintage {
		t.Fatalf("Warnings=%v, want one duplicate vintage warning", table.Warnings)
	}
}

func TestBuild_ColumnOrder(t *testing.T) {
	t.Parallel()

	in := Input{
		Forecasts: []ForecastBatch{
			{Source: "g8", Facts: []model.ForecastFact{
				{ProductID: "P", ForecastMonth: mk(2025, 9), GenerationMonth: mk(2025, 8), Quantity: qty(1)},
			}},
			{Source: "g7", Facts: []model.ForecastFact{
				{ProductID: "P", ForecastMonth: mk(2025, 9), GenerationMonth: mk(2025, 7), Quantity: qty(1)},
				{ProductID: "P", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(1)},
			}},
		},
	}

	table := NewBuilder(DefaultPolicy()).Build(in)
	want := []string{
		"2025-08 forecast (2025-07 generated)",
		"2025-08-order",
		"2025-08-shipment",
		"2025-09 forecast (2025-07 generated)",
		"2025-09 forecast (2025-08 generated)",
		"2025-09-order",
		"2025-09-shipment",
	}
	if len(table.Columns) != len(want) {
		t.Fatalf("Columns=%v", table.Columns)
	}
	for i, c := range table.Columns {
		if c.String() != want[i] {
			t.Fatalf("Columns[%d]=%q, want %q", i, c.String(), want[i])
		}
	}

	names := table.ColumnNames()
	if names[0] != "晶圆品名" || names[2] != "品名" || names[3] != want[0] {
		t.Fatalf("ColumnNames=%v", names)
	}
}

func TestBuild_AttributePrecedence(t *testing.T) {
	t.Parallel()

	mt := mapping.NewTable()
	mt.AddNewID("P", model.Attributes{WaferName: "W-map"})

	in := Input{
		Mapping: mapping.NewResolver(mt, mapping.SelectLongest),
		Orders: LedgerBatch{
			Facts:      []model.LedgerFact{{ProductID: "P", Month: mk(2025, 1), Quantity: qty(1)}},
			Attributes: map[string]model.Attributes{"P": {WaferName: "W-order", Spec: "S-order"}},
		},
		Forecasts: []ForecastBatch{{
			Source:     "f",
			Facts:      []model.ForecastFact{{ProductID: "P", ForecastMonth: mk(2025, 1), GenerationMonth: mk(2025, 1), Quantity: qty(1)}},
			Attributes: map[string]model.Attributes{"P": {WaferName: "W-fc", Spec: "S-fc"}},
		}},
	}

	id := mustRow(t, NewBuilder(DefaultPolicy()).Build(in), "P").Identity
	if id.WaferName != "W-map" || id.Spec != "S-order" {
		t.Fatalf("identity=%+v", id)
	}

	policy := DefaultPolicy()
	policy.AttributePrecedence = []AttributeSource{SourceForecast, SourceMapping}
	id = mustRow(t, NewBuilder(policy).Build(in), "P").Identity
	if id.WaferName != "W-fc" || id.Spec != "S-fc" {
		t.Fatalf("identity=%+v", id)
	}
}

func TestBuild_MappingOnlyRowsPolicy(t *testing.T) {
	t.Parallel()

	mt := mapping.NewTable()
	mt.AddNewID("IDLE", model.Attributes{})
	in := Input{
		Mapping: mapping.NewResolver(mt, mapping.SelectLongest),
		Orders:  LedgerBatch{Facts: []model.LedgerFact{{ProductID: "A", Month: mk(2025, 1), Quantity: qty(1)}}},
	}

	dropped := NewBuilder(DefaultPolicy()).Build(in)
	if _, ok := dropped.Row("IDLE"); ok {
		t.Fatalf("mapping-only row should be dropped by default")
	}

	policy := DefaultPolicy()
	policy.MappingOnlyRows = MappingOnlyKeep
	kept := NewBuilder(policy).Build(in)
	r := mustRow(t, kept, "IDLE")
	assertValue(t, r, OrderColumn(mk(2025, 1)), 0)
}

func TestBuild_MappingOnlyRowsUseCanonicalIDs(t *testing.T) {
	t.Parallel()

	mt := mapping.NewTable()
	mt.AddPrimary("A", "B")
	mt.AddPrimary("B", "C")
	mt.AddNewID("B", model.Attributes{WaferName: "WB"})
	mt.AddNewID("C", model.Attributes{})
	resolver := mapping.NewResolver(mt, mapping.SelectLongest)

	policy := DefaultPolicy()
	policy.MappingOnlyRows = MappingOnlyKeep
	table := NewBuilder(policy).Build(Input{
		Mapping: resolver,
		Orders: LedgerBatch{Facts: []model.LedgerFact{
			{ProductID: resolver.Resolve("A"), Month: mk(2025, 1), Quantity: qty(5)},
		}},
	})

	for _, r := range table.Rows {
		if got := resolver.Resolve(r.Identity.CanonicalName); got != r.Identity.CanonicalName {
			t.Fatalf("row %q is not canonical (resolves to %q)", r.Identity.CanonicalName, got)
		}
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(table.Rows))
	}
	r := mustRow(t, table, "C")
	assertValue(t, r, OrderColumn(mk(2025, 1)), 5)
	if r.Identity.WaferName != "WB" {
		t.Fatalf("WaferName=%q, want WB", r.Identity.WaferName)
	}
}

func TestBuild_ForecastProductsWithoutValuesKeepRow(t *testing.T) {
	t.Parallel()

	table := NewBuilder(DefaultPolicy()).Build(Input{
		Orders: LedgerBatch{Facts: []model.LedgerFact{{ProductID: "A", Month: mk(2025, 1), Quantity: qty(1)}}},
		Forecasts: []ForecastBatch{{
			Source:   "f",
			Products: []string{"A", "BLANK"},
			Facts:    []model.ForecastFact{{ProductID: "A", ForecastMonth: mk(2025, 2), GenerationMonth: mk(2025, 1), Quantity: qty(3)}},
		}},
	})

	r := mustRow(t, table, "BLANK")
	assertValue(t, r, ForecastColumn(mk(2025, 2), mk(2025, 1)), 0)
	assertValue(t, r, OrderColumn(mk(2025, 1)), 0)
}

func TestBuild_RowsSortedByName(t *testing.T) {
	t.Parallel()

	in := Input{Orders: LedgerBatch{Facts: []model.LedgerFact{
		{ProductID: "C", Month: mk(2025, 1), Quantity: qty(1)},
		{ProductID: "A", Month: mk(2025, 1), Quantity: qty(1)},
		{ProductID: "B", Month: mk(2025, 1), Quantity: qty(1)},
	}}}
	table := NewBuilder(DefaultPolicy()).Build(in)
	for i, want := range []string{"A", "B", "C"} {
		if got := table.Rows[i].Identity.CanonicalName; got != want {
			t.Fatalf("Rows[%d]=%q, want %q", i, got, want)
		}
	}
}

func TestMasterTable_Records(t *testing.T) {
	t.Parallel()

	in := Input{
		Orders: LedgerBatch{Facts: []model.LedgerFact{{ProductID: "A", Month: mk(2025, 8), Quantity: qty(4)}}},
		Forecasts: []ForecastBatch{{Source: "f", Facts: []model.ForecastFact{
			{ProductID: "A", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: qty(9)},
		}}},
	}
	records := NewBuilder(DefaultPolicy()).Build(in).Records()
	if len(records) != 2 {
		t.Fatalf("records=%v", records)
	}
	if records[0].Kind != model.KindForecast || records[0].GenerationMonth == nil || *records[0].GenerationMonth != mk(2025, 7) {
		t.Fatalf("records[0]=%+v", records[0])
	}
	if records[1].Kind != model.KindOrder || !records[1].Quantity.Equal(qty(4)) {
		t.Fatalf("records[1]=%+v", records[1])
	}
}
