package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"masterplan/internal/model"
)

// csvSheetName CSV 文件的虚拟 Sheet 名
const csvSheetName = "csv"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sheetRows 一个 Sheet 的全部行
type sheetRows struct {
	Name string
	Rows [][]string
}

// readWorkbook 读取文件中的所有 Sheet（CSV 视为单个 Sheet）
func readWorkbook(file model.SourceFile) ([]sheetRows, error) {
	if file.Ext() == ".csv" {
		rows, err := readCSVRows(file.Content)
		if err != nil {
			return nil, err
		}
		return []sheetRows{{Name: csvSheetName, Rows: rows}}, nil
	}

	wb, err := excelize.OpenReader(bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer wb.Close()

	var out []sheetRows
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("读取 Sheet %q 失败: %w", name, err)
		}
		out = append(out, sheetRows{Name: name, Rows: rows})
	}
	return out, nil
}

// pickLongestSheet 选择行数最多的 Sheet，并列时取靠前者
func pickLongestSheet(sheets []sheetRows) (sheetRows, bool) {
	best := -1
	for i, s := range sheets {
		if best < 0 || len(s.Rows) > len(sheets[best].Rows) {
			best = i
		}
	}
	if best < 0 || len(sheets[best].Rows) == 0 {
		return sheetRows{}, false
	}
	return sheets[best], true
}

// pickNamedSheet 按名称选择 Sheet，不存在时回退到第一个
func pickNamedSheet(sheets []sheetRows, name string) (sheetRows, bool, bool) {
	if len(sheets) == 0 {
		return sheetRows{}, false, false
	}
	for _, s := range sheets {
		if s.Name == name {
			return s, true, true
		}
	}
	return sheets[0], false, true
}

// readCSVRows 读取 CSV，支持 UTF-8 (含 BOM) 与 GB18030/GBK 编码
func readCSVRows(content []byte) ([][]string, error) {
	var r io.Reader
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		r = bytes.NewReader(content)
	} else {
		r = transform.NewReader(bytes.NewReader(content), simplifiedchinese.GB18030.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 失败: %w", err)
	}
	return rows, nil
}
