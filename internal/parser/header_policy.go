package parser

import (
	"fmt"
	"strings"
)

// DefaultHeaderScanRows 默认表头扫描行数
const DefaultHeaderScanRows = 3

// HeaderHeuristic 表头行判定规则
type HeaderHeuristic struct {
	Name  string
	Match func(row []string) bool
}

// HeaderDetectionPolicy 表头识别策略：按顺序尝试各规则，每条规则扫描前 ScanRows 行
type HeaderDetectionPolicy struct {
	ScanRows   int
	Heuristics []HeaderHeuristic
}

// HeaderMatch 表头识别结果
type HeaderMatch struct {
	Row       int // 0-based 行号
	Heuristic string
	Headers   []string
}

// Detect 在 rows 中定位表头行，全部规则失败时返回 ErrHeaderNotFound
func (p HeaderDetectionPolicy) Detect(rows [][]string) (HeaderMatch, error) {
	limit := p.ScanRows
	if limit <= 0 {
		limit = DefaultHeaderScanRows
	}
	if limit > len(rows) {
		limit = len(rows)
	}

	for _, h := range p.Heuristics {
		for i := 0; i < limit; i++ {
			if h.Match(rows[i]) {
				return HeaderMatch{Row: i, Heuristic: h.Name, Headers: rows[i]}, nil
			}
		}
	}

	names := make([]string, 0, len(p.Heuristics))
	for _, h := range p.Heuristics {
		names = append(names, h.Name)
	}
	return HeaderMatch{}, fmt.Errorf("%w (前 %d 行, 规则: %s)", ErrHeaderNotFound, limit, strings.Join(names, ", "))
}

// MarkerHeuristic 行内任一单元格包含标记文本
func MarkerHeuristic(marker string) HeaderHeuristic {
	marker = NormalizeColumnName(marker)
	return HeaderHeuristic{
		Name: "marker:" + marker,
		Match: func(row []string) bool {
			for _, cell := range row {
				if marker != "" && strings.Contains(NormalizeColumnName(cell), marker) {
					return true
				}
			}
			return false
		},
	}
}

// ForecastLabelHeuristic 行内存在 "N月预测" 表头
func ForecastLabelHeuristic() HeaderHeuristic {
	return HeaderHeuristic{
		Name: "forecast-label",
		Match: func(row []string) bool {
			for _, cell := range row {
				if IsForecastLabel(cell) {
					return true
				}
			}
			return false
		},
	}
}

// RequiredColumnsHeuristic 行内包含全部必需列
func RequiredColumnsHeuristic(columns ...string) HeaderHeuristic {
	return HeaderHeuristic{
		Name: "required:" + strings.Join(columns, "+"),
		Match: func(row []string) bool {
			for _, col := range columns {
				if findExactCol(row, col) < 0 {
					return false
				}
			}
			return len(columns) > 0
		},
	}
}

// AnyColumnHeuristic 行内包含任一候选列
func AnyColumnHeuristic(columns ...string) HeaderHeuristic {
	return HeaderHeuristic{
		Name: "any:" + strings.Join(columns, "|"),
		Match: func(row []string) bool {
			for _, col := range columns {
				if findExactCol(row, col) >= 0 {
					return true
				}
			}
			return false
		},
	}
}

// ForecastHeaderPolicy 预测表表头策略：先找标记列，再找预测月份列
func ForecastHeaderPolicy(scanRows int, marker string) HeaderDetectionPolicy {
	return HeaderDetectionPolicy{
		ScanRows: scanRows,
		Heuristics: []HeaderHeuristic{
			MarkerHeuristic(marker),
			ForecastLabelHeuristic(),
		},
	}
}

// LedgerHeaderPolicy 台账表头策略：包含全部必需列的行
func LedgerHeaderPolicy(scanRows int, required ...string) HeaderDetectionPolicy {
	return HeaderDetectionPolicy{
		ScanRows:   scanRows,
		Heuristics: []HeaderHeuristic{RequiredColumnsHeuristic(required...)},
	}
}
