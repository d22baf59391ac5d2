package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()
	if err := wb.SetSheetName(wb.GetSheetName(0), sheet); err != nil {
		t.Fatalf("SetSheetName: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := row
		if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

func writeInputs(t *testing.T, dir string) {
	t.Helper()

	writeWorkbook(t, filepath.Join(dir, "订单.xlsx"), "Sheet", [][]any{
		{"品名", "客户要求交期", "订单数量"},
		{"P1", "2025-08-05", 30},
	})
	writeWorkbook(t, filepath.Join(dir, "出货.xlsx"), "原表", [][]any{
		{"品名", "交易日期", "数量"},
		{"P1", "2025-08-10", 12},
	})
	writeWorkbook(t, filepath.Join(dir, "预测20250715.xlsx"), "Sheet1", [][]any{
		{"产品型号", "品名", "8月预测"},
		{"T", "P1", 100},
	})
	writeWorkbook(t, filepath.Join(dir, "料号对照.xlsx"), "对照", [][]any{
		{"旧品名", "新品名", "新晶圆品名", "新规格"},
		{"P-OLD", "P1", "W1", "S1"},
	})
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestBuildCommand_InputDir(t *testing.T) {
	dir := t.TempDir()
	inputs := filepath.Join(dir, "inputs")
	if err := os.Mkdir(inputs, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeInputs(t, inputs)
	out := filepath.Join(dir, "主计划.xlsx")

	err := runCLI(t, "build",
		"--config", filepath.Join(dir, "config.toml"),
		"--input-dir", inputs,
		"--out", out)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue("预测分析", "D2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if v != "2025-07生成预测" {
		t.Fatalf("D2 got=%q", v)
	}
}

func TestBuildCommand_ExplicitFilesWithRecord(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	out := filepath.Join(dir, "out.xlsx")
	t.Setenv("MASTERPLAN_DATA_DIR", filepath.Join(dir, "data"))

	err := runCLI(t, "build",
		"--config", filepath.Join(dir, "config.toml"),
		"--order", filepath.Join(dir, "订单.xlsx"),
		"--shipment", filepath.Join(dir, "出货.xlsx"),
		"--forecast", filepath.Join(dir, "预测20250715.xlsx"),
		"--mapping", filepath.Join(dir, "料号对照.xlsx"),
		"--out", out,
		"--record")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "masterplan.db")); err != nil {
		t.Fatalf("run log missing: %v", err)
	}
}

func TestBuildCommand_MissingShipment(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)

	err := runCLI(t, "build",
		"--config", filepath.Join(dir, "config.toml"),
		"--order", filepath.Join(dir, "订单.xlsx"),
		"--out", filepath.Join(dir, "out.xlsx"))
	if err == nil {
		t.Fatalf("expected error without shipment ledger")
	}
}

func TestBuildCommand_MissingMapping(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)

	err := runCLI(t, "build",
		"--config", filepath.Join(dir, "config.toml"),
		"--order", filepath.Join(dir, "订单.xlsx"),
		"--shipment", filepath.Join(dir, "出货.xlsx"),
		"--forecast", filepath.Join(dir, "预测20250715.xlsx"),
		"--out", filepath.Join(dir, "out.xlsx"))
	if err == nil {
		t.Fatalf("expected error without mapping table")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.xlsx")); statErr == nil {
		t.Fatalf("no workbook should be written when the run aborts")
	}
}
