package parser

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"masterplan/internal/model"
)

type testSheet struct {
	name string
	rows [][]any
}

// buildWorkbookBytes 构造内存工作簿，Sheet 顺序与参数一致
func buildWorkbookBytes(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()

	wb := excelize.NewFile()
	t.Cleanup(func() { _ = wb.Close() })

	for i, s := range sheets {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), s.name); err != nil {
				t.Fatalf("SetSheetName %s: %v", s.name, err)
			}
		} else if _, err := wb.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet %s: %v", s.name, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			values := row
			if err := wb.SetSheetRow(s.name, cell, &values); err != nil {
				t.Fatalf("SetSheetRow %s: %v", s.name, err)
			}
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func sourceFile(t *testing.T, name string, sheets ...testSheet) model.SourceFile {
	t.Helper()
	return model.SourceFile{Name: name, Content: buildWorkbookBytes(t, sheets...)}
}
