package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileDateNotFound 文件名中没有合法的 YYYYMMDD 生成日期
	ErrFileDateNotFound = errors.New("生成日期未在文件名中找到 (需包含 YYYYMMDD)")
	// ErrHeaderNotFound 扫描范围内未找到表头行
	ErrHeaderNotFound = errors.New("未找到表头行")
	// ErrEmptyWorkbook 工作簿没有任何数据
	ErrEmptyWorkbook = errors.New("工作簿为空")
)

// MissingRequiredColumnError 台账缺少必需列
type MissingRequiredColumnError struct {
	File    string
	Role    string
	Columns []string
}

func (e *MissingRequiredColumnError) Error() string {
	return fmt.Sprintf("%s「%s」缺少必需列: %s", e.Role, e.File, strings.Join(e.Columns, ", "))
}

// IsSkippable 该错误是否只需跳过当前文件
func IsSkippable(err error) bool {
	return errors.Is(err, ErrFileDateNotFound) || errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrEmptyWorkbook)
}
