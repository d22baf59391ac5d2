package parser

import (
	"fmt"
	"regexp"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
)

const mappingRole = "料号映射表"

var substituteColRe = regexp.MustCompile(`^替代(品名|料号)\d*$`)

// MappingSummary 映射表解析统计
type MappingSummary struct {
	FileName    string
	Sheet       string
	HeaderRow   int
	Primary     int // 新旧对照
	Semi        int // 半成品
	Substitutes int // 替代规则
	Skipped     int // 半成品已有对照时跳过的条目
}

// ParseMappingTable 解析料号映射表，拆分为新旧对照、半成品、替代三部分
func ParseMappingTable(file model.SourceFile, scanRows int) (*mapping.Table, *MappingSummary, error) {
	sheets, err := readWorkbook(file)
	if err != nil {
		return nil, nil, fmt.Errorf("%s「%s」: %w", mappingRole, file.Name, err)
	}
	if len(sheets) == 0 || len(sheets[0].Rows) == 0 {
		return nil, nil, fmt.Errorf("%s「%s」: %w", mappingRole, file.Name, ErrEmptyWorkbook)
	}
	sheet := sheets[0]

	policy := HeaderDetectionPolicy{
		ScanRows:   scanRows,
		Heuristics: []HeaderHeuristic{AnyColumnHeuristic("新品名", "新料号")},
	}
	header, err := policy.Detect(sheet.Rows)
	if err != nil {
		return nil, nil, &MissingRequiredColumnError{File: file.Name, Role: mappingRole, Columns: []string{"新品名"}}
	}

	headers := header.Headers
	oldCol := findFirstCol(headers, "旧品名", "旧料号")
	newCol := findFirstCol(headers, "新品名", "新料号")
	semiCol := findContainsCol(headers, "半成品")
	waferCol := findFirstCol(headers, "新晶圆品名", "晶圆品名", "晶圆")
	specCol := findFirstCol(headers, "新规格", "规格")

	var subCols []int
	for i, h := range headers {
		if substituteColRe.MatchString(NormalizeColumnName(h)) {
			subCols = append(subCols, i)
		}
	}

	table := mapping.NewTable()
	summary := &MappingSummary{FileName: file.Name, Sheet: sheet.Name, HeaderRow: header.Row}

	type semiEntry struct{ semi, newID string }
	var semis []semiEntry

	for _, row := range sheet.Rows[header.Row+1:] {
		newID := getCell(row, newCol)
		if newID == "" {
			continue
		}
		table.AddNewID(newID, model.Attributes{WaferName: getCell(row, waferCol), Spec: getCell(row, specCol)})

		if table.AddPrimary(getCell(row, oldCol), newID) {
			summary.Primary++
		}
		if semi := getCell(row, semiCol); semi != "" {
			semis = append(semis, semiEntry{semi: semi, newID: newID})
		}
		for _, col := range subCols {
			if pattern := getCell(row, col); pattern != "" {
				table.AddSubstitute(pattern, newID)
				summary.Substitutes++
			}
		}
	}

	// 半成品仅在新旧对照中未出现时生效
	for _, e := range semis {
		if table.AddPrimary(e.semi, e.newID) {
			summary.Semi++
		} else {
			summary.Skipped++
		}
	}

	return table, summary, nil
}
