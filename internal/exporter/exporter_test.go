package exporter

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"masterplan/internal/model"
	"masterplan/internal/planner"
)

func mk(year, month int) model.MonthKey {
	return model.MonthKey{Year: year, Month: month}
}

func fixtureTable() *planner.MasterTable {
	in := planner.Input{
		Orders: planner.LedgerBatch{Facts: []model.LedgerFact{
			{ProductID: "P2", Month: mk(2025, 8), Quantity: decimal.NewFromInt(10)},
		}},
		Forecasts: []planner.ForecastBatch{{Source: "预测20250715.xlsx", Facts: []model.ForecastFact{
			{ProductID: "P1", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: decimal.NewFromInt(100)},
			{ProductID: "P2", ForecastMonth: mk(2025, 8), GenerationMonth: mk(2025, 7), Quantity: decimal.NewFromInt(50)},
		}}},
	}
	return planner.NewBuilder(planner.DefaultPolicy()).Build(in)
}

func renderAndReopen(t *testing.T, table *planner.MasterTable) *excelize.File {
	t.Helper()

	var buf bytes.Buffer
	if err := NewRenderer().Write(&buf, table, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s!%s): %v", sheet, cell, err)
	}
	return v
}

func TestRender_SheetsInOrder(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, fixtureTable())
	got := f.GetSheetList()
	want := []string{SheetAnalysis, SheetVintage, SheetDetail}
	if len(got) != len(want) {
		t.Fatalf("sheets=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sheets=%v want=%v", got, want)
		}
	}
}

func TestRender_AnalysisHeaders(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, fixtureTable())
	checks := map[string]string{
		"A1": "晶圆品名",
		"B1": "规格",
		"C1": "品名",
		"D1": "2025-08",
		"D2": "2025-07生成预测",
		"E2": "订单",
		"F2": "出货",
		"C3": "P1",
		"C4": "P2",
		"D3": "100",
		"E4": "10",
	}
	for cell, want := range checks {
		if got := cellValue(t, f, SheetAnalysis, cell); got != want {
			t.Fatalf("%s got=%q want=%q", cell, got, want)
		}
	}

	merges, err := f.GetMergeCells(SheetAnalysis)
	if err != nil {
		t.Fatalf("GetMergeCells: %v", err)
	}
	var monthMerged, identityMerged bool
	for _, m := range merges {
		if m.GetStartAxis() == "D1" && m.GetEndAxis() == "F1" {
			monthMerged = true
		}
		if m.GetStartAxis() == "C1" && m.GetEndAxis() == "C2" {
			identityMerged = true
		}
	}
	if !monthMerged || !identityMerged {
		t.Fatalf("merges=%v", merges)
	}
}

func TestRender_HighlightsForecastWithoutOrder(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, fixtureTable())
	highlighted, err := f.GetCellStyle(SheetAnalysis, "D3")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	plain, err := f.GetCellStyle(SheetAnalysis, "D4")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	if highlighted == plain {
		t.Fatalf("P1 forecast without order should use a distinct style")
	}
	orderStyle, _ := f.GetCellStyle(SheetAnalysis, "E4")
	if plain != orderStyle {
		t.Fatalf("P2 forecast with order should use the plain number style: %d vs %d", plain, orderStyle)
	}
	// 同月订单单元格一并标红，出货不标
	pairedOrder, _ := f.GetCellStyle(SheetAnalysis, "E3")
	if pairedOrder != highlighted {
		t.Fatalf("P1 order cell should share the highlight style: %d vs %d", pairedOrder, highlighted)
	}
	shipment, _ := f.GetCellStyle(SheetAnalysis, "F3")
	if shipment != plain {
		t.Fatalf("shipment cell should stay plain: %d vs %d", shipment, plain)
	}
}

func TestNeedsHighlight(t *testing.T) {
	t.Parallel()

	table := fixtureTable()
	fc := planner.ForecastColumn(mk(2025, 8), mk(2025, 7))
	p1, _ := table.Row("P1")
	p2, _ := table.Row("P2")
	oc := planner.OrderColumn(mk(2025, 8))
	aug := []planner.ColumnKey{fc, oc, planner.ShipmentColumn(mk(2025, 8))}
	if !NeedsHighlight(p1, fc, aug) {
		t.Fatalf("P1 should be highlighted")
	}
	if !NeedsHighlight(p1, oc, aug) {
		t.Fatalf("P1 order cell should be highlighted with its forecast")
	}
	if NeedsHighlight(p2, fc, aug) || NeedsHighlight(p2, oc, aug) {
		t.Fatalf("P2 has orders and should not be highlighted")
	}
	if NeedsHighlight(p1, planner.ShipmentColumn(mk(2025, 8)), aug) {
		t.Fatalf("shipment columns are never highlighted")
	}
}

func TestRender_HyperlinksToDetail(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, fixtureTable())
	ok, target, err := f.GetCellHyperLink(SheetAnalysis, "D4")
	if err != nil {
		t.Fatalf("GetCellHyperLink: %v", err)
	}
	if !ok || target != SheetDetail+"!A3" {
		t.Fatalf("link ok=%v target=%q", ok, target)
	}
	if ok, _, _ := f.GetCellHyperLink(SheetAnalysis, "F3"); ok {
		t.Fatalf("zero cells should not carry links")
	}

	if got := cellValue(t, f, SheetDetail, "C3"); got != "预测" {
		t.Fatalf("detail C3 got=%q", got)
	}
	if got := cellValue(t, f, SheetDetail, "A3"); got != "P2" {
		t.Fatalf("detail A3 got=%q", got)
	}
}

func TestRender_VintageSheet(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, fixtureTable())
	if got := cellValue(t, f, SheetVintage, "D1"); got != "2025-07生成" {
		t.Fatalf("D1 got=%q", got)
	}
	if got := cellValue(t, f, SheetVintage, "D2"); got != "2025-08" {
		t.Fatalf("D2 got=%q", got)
	}
	if got := cellValue(t, f, SheetVintage, "D4"); got != "50" {
		t.Fatalf("D4 got=%q", got)
	}
}

func TestRender_ReportsProgress(t *testing.T) {
	t.Parallel()

	var events []ProgressEvent
	f, err := NewRenderer().Render(fixtureTable(), func(evt ProgressEvent) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	defer f.Close()

	if len(events) == 0 || events[len(events)-1].Percent != 100 {
		t.Fatalf("events=%v", events)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Fatalf("progress went backwards: %v", events)
		}
	}

	var sheets []string
	for _, evt := range events {
		if evt.Sheet != "" {
			sheets = append(sheets, evt.Sheet)
		}
	}
	want := []string{SheetDetail, SheetAnalysis, SheetVintage}
	if len(sheets) != len(want) {
		t.Fatalf("sheet stages=%v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Fatalf("sheet stages=%v, want %v", sheets, want)
		}
	}
}

func TestRender_EmptyTable(t *testing.T) {
	t.Parallel()

	f := renderAndReopen(t, &planner.MasterTable{})
	if got := cellValue(t, f, SheetAnalysis, "C1"); got != "品名" {
		t.Fatalf("C1 got=%q", got)
	}
}
