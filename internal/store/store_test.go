package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"masterplan/internal/model"
	"masterplan/internal/parser"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "masterplan.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecords() []model.Record {
	gen := model.MonthKey{Year: 2025, Month: 7}
	return []model.Record{
		{ProductID: "P2", Month: model.MonthKey{Year: 2025, Month: 8}, Kind: model.KindOrder, Quantity: decimal.RequireFromString("10.5")},
		{ProductID: "P1", Month: model.MonthKey{Year: 2025, Month: 9}, GenerationMonth: &gen, Kind: model.KindForecast, Quantity: decimal.NewFromInt(100)},
		{ProductID: "P1", Month: model.MonthKey{Year: 2025, Month: 6}, Kind: model.KindShipment, Quantity: decimal.NewFromInt(3)},
	}
}

func sampleReport() *parser.RunReport {
	r := &parser.RunReport{Products: 2, Columns: 5}
	r.Record(parser.FileResult{FileName: "订单.xlsx", Kind: parser.SourceOrder, Status: "imported", Facts: 1, Duration: 1500 * time.Millisecond})
	r.Record(parser.FileResult{FileName: "预测.xlsx", Kind: parser.SourceForecast, Status: "skipped", Warnings: []string{"文件名中未找到日期"}})
	return r
}

func TestStore_CompleteRunRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	started := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	if err := s.CreateRun("run-1", started); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.CompleteRun("run-1", sampleReport(), sampleRecords()); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	run, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != RunCompleted || run.CompletedAt == nil {
		t.Fatalf("run=%+v", run)
	}
	if run.TotalFiles != 2 || run.ImportedFiles != 1 || run.SkippedFiles != 1 || run.Products != 2 {
		t.Fatalf("run counters=%+v", run)
	}
	if run.FirstMonth != "2025-06" || run.LastMonth != "2025-09" {
		t.Fatalf("months=%s..%s", run.FirstMonth, run.LastMonth)
	}
	if got := len(run.Months()); got != 4 {
		t.Fatalf("Months len got=%d want=4", got)
	}

	files, err := s.ListRunFiles("run-1")
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	if len(files) != 2 || files[0].Duration != 1500*time.Millisecond || files[1].Warnings[0] != "文件名中未找到日期" {
		t.Fatalf("files=%+v", files)
	}

	products, err := s.ListProducts("run-1")
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 2 || products[0] != "P1" || products[1] != "P2" {
		t.Fatalf("products=%v", products)
	}

	records, err := s.ListRecords("run-1", "P1")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%v", records)
	}
	if records[0].GenerationMonth == nil || *records[0].GenerationMonth != (model.MonthKey{Year: 2025, Month: 7}) {
		t.Fatalf("generation=%v", records[0].GenerationMonth)
	}
	if records[1].GenerationMonth != nil {
		t.Fatalf("shipment record must not carry a generation month")
	}

	all, err := s.ListRecords("run-1", "")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(all) != 3 || !all[0].Quantity.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("all=%v", all)
	}
}

func TestStore_FailRun(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.CreateRun("run-x", time.Now()); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.FailRun("run-x", "订单台账「订单.xlsx」缺少必需列: 订单数量"); err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	run, err := s.GetRun("run-x")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != RunFailed || run.ErrorMessage == "" {
		t.Fatalf("run=%+v", run)
	}
}

func TestStore_GetRunNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err=%v, want ErrRunNotFound", err)
	}
	if err := s.FinishRun("missing", &parser.RunReport{}, nil); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("FinishRun err=%v, want ErrRunNotFound", err)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.CreateRun(id, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	if err := s.SetRunOutput("b", "/tmp/b.xlsx"); err != nil {
		t.Fatalf("SetRunOutput: %v", err)
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("runs=%v", runs)
	}
	if runs[1].OutputPath != "/tmp/b.xlsx" {
		t.Fatalf("OutputPath=%q", runs[1].OutputPath)
	}
}

func TestStore_SeparateInserts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.CreateRun("r", time.Now()); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.InsertRunFiles("r", sampleReport().Files); err != nil {
		t.Fatalf("InsertRunFiles: %v", err)
	}
	if err := s.InsertRecords("r", sampleRecords()); err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	records, err := s.ListRecords("r", "P2")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 || records[0].Kind != model.KindOrder {
		t.Fatalf("records=%v", records)
	}
}
