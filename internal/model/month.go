package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthKey 年月键，序列化为 "yyyy-mm"
type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewMonthKey 创建年月键，月份越界时返回 false
func NewMonthKey(year, month int) (MonthKey, bool) {
	if year < 1 || month < 1 || month > 12 {
		return MonthKey{}, false
	}
	return MonthKey{Year: year, Month: month}, true
}

// MonthOf 取时间所在月份
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

// ParseMonthKey 解析 "yyyy-mm"
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return MonthKey{}, fmt.Errorf("invalid month key %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: %w", s, err)
	}
	key, ok := NewMonthKey(year, month)
	if !ok {
		return MonthKey{}, fmt.Errorf("invalid month key %q", s)
	}
	return key, nil
}

// String 返回 "yyyy-mm"
func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// IsZero 是否为空值
func (m MonthKey) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Index 单调递增的月份序号
func (m MonthKey) Index() int {
	return m.Year*12 + m.Month - 1
}

// AddMonths 向后偏移 n 个月（n 可为负）
func (m MonthKey) AddMonths(n int) MonthKey {
	idx := m.Index() + n
	return MonthKey{Year: idx / 12, Month: idx%12 + 1}
}

// Compare 比较两个年月，返回 -1/0/1
func (m MonthKey) Compare(other MonthKey) int {
	a, b := m.Index(), other.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before 是否早于另一个年月
func (m MonthKey) Before(other MonthKey) bool {
	return m.Compare(other) < 0
}

// MarshalText 实现 encoding.TextMarshaler
func (m MonthKey) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *MonthKey) UnmarshalText(text []byte) error {
	key, err := ParseMonthKey(string(text))
	if err != nil {
		return err
	}
	*m = key
	return nil
}

// MonthRange 返回 [from, to] 闭区间内的所有月份，from 晚于 to 时返回空
func MonthRange(from, to MonthKey) []MonthKey {
	if to.Before(from) {
		return nil
	}
	months := make([]MonthKey, 0, to.Index()-from.Index()+1)
	for m := from; !to.Before(m); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}
