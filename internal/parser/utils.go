package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeColumnName 规范化列名：全角转半角，去除所有空白
func NormalizeColumnName(name string) string {
	name = width.Fold.String(name)
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "　", "")
	return whitespaceRe.ReplaceAllString(name, "")
}

// NormalizeHeaders 规范化整行表头
func NormalizeHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = NormalizeColumnName(h)
	}
	return out
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func findExactCol(headers []string, want string) int {
	want = NormalizeColumnName(want)
	for i, h := range headers {
		if NormalizeColumnName(h) == want {
			return i
		}
	}
	return -1
}

func findContainsCol(headers []string, sub string) int {
	sub = NormalizeColumnName(sub)
	for i, h := range headers {
		if strings.Contains(NormalizeColumnName(h), sub) {
			return i
		}
	}
	return -1
}

// findFirstCol 依次尝试候选列名（先精确后包含）
func findFirstCol(headers []string, candidates ...string) int {
	for _, c := range candidates {
		if idx := findExactCol(headers, c); idx >= 0 {
			return idx
		}
	}
	for _, c := range candidates {
		if idx := findContainsCol(headers, c); idx >= 0 {
			return idx
		}
	}
	return -1
}

func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseQuantity 解析数量，空值或无法解析时为 0
func parseQuantity(s string) decimal.Decimal {
	q, _ := parseOptionalQuantity(s)
	return q
}

// parseOptionalQuantity 解析数量，第二个返回值表示单元格非空
func parseOptionalQuantity(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true
	}
	return d, true
}
