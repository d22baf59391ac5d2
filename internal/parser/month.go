package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"

	"masterplan/internal/model"
)

var (
	digitRunRe      = regexp.MustCompile(`\d+`)
	forecastLabelRe = regexp.MustCompile(`^(\d{1,2})月预测(?:[._\-]?\d+)?$`)
	eightDigitRe    = regexp.MustCompile(`^\d{8}$`)
)

// ParseGenerationDate 从文件名中提取生成日期所在月份。
// 取第一个构成合法日历日期的连续 8 位数字 (YYYYMMDD)。
func ParseGenerationDate(filename string) (model.MonthKey, error) {
	base := filepath.Base(filename)
	for _, run := range digitRunRe.FindAllString(base, -1) {
		for i := 0; i+8 <= len(run); i++ {
			if t, ok := parseYYYYMMDD(run[i : i+8]); ok {
				return model.MonthOf(t), nil
			}
		}
	}
	return model.MonthKey{}, ErrFileDateNotFound
}

func parseYYYYMMDD(s string) (time.Time, bool) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 1900 {
		return time.Time{}, false
	}
	return t, true
}

// ParseForecastLabel 解析 "N月预测" 表头，返回月份数字
func ParseForecastLabel(label string) (int, bool) {
	m := forecastLabelRe.FindStringSubmatch(NormalizeColumnName(label))
	if len(m) != 2 {
		return 0, false
	}
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return 0, false
	}
	return month, true
}

// IsForecastLabel 是否为预测月份表头
func IsForecastLabel(label string) bool {
	_, ok := ParseForecastLabel(label)
	return ok
}

// ResolveForecastMonth 将 "N月预测" 解析为具体年月。
// N 小于生成月份时视为次年，否则为当年。
func ResolveForecastMonth(label string, generation model.MonthKey) (model.MonthKey, bool) {
	month, ok := ParseForecastLabel(label)
	if !ok {
		return model.MonthKey{}, false
	}
	year := generation.Year
	if month < generation.Month {
		year++
	}
	return model.MonthKey{Year: year, Month: month}, true
}

var ledgerDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006年1月2日",
	"2006年01月02日",
	"01-02-06",
	"1/2/06",
	"1/2/2006",
	"2006-01",
	"2006/01",
	"2006-1",
	"2006/1",
	"2006年1月",
}

// ParseLedgerMonth 将台账日期单元格归一到月份，无法解析时返回 false
func ParseLedgerMonth(cell string) (model.MonthKey, bool) {
	s := strings.TrimSpace(width.Fold.String(cell))
	if s == "" {
		return model.MonthKey{}, false
	}

	if eightDigitRe.MatchString(s) {
		if t, ok := parseYYYYMMDD(s); ok {
			return model.MonthOf(t), true
		}
		return model.MonthKey{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		// Excel 日期序列号
		if serial < 1 || serial > 2958465 {
			return model.MonthKey{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return model.MonthKey{}, false
		}
		return model.MonthOf(t), true
	}

	for _, layout := range ledgerDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.MonthOf(t), true
		}
	}
	return model.MonthKey{}, false
}
