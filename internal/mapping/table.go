package mapping

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"masterplan/internal/model"
)

// Selection 多条替代规则同时命中时的取舍方式
type Selection string

const (
	// SelectLongest 取字面长度最长的模式，等长时取先声明者
	SelectLongest Selection = "longest"
	// SelectDeclared 取最先声明的模式
	SelectDeclared Selection = "declared"
)

// ParseSelection 解析配置中的选择方式，空值返回默认
func ParseSelection(s string) (Selection, error) {
	switch Selection(strings.ToLower(strings.TrimSpace(s))) {
	case "", SelectLongest:
		return SelectLongest, nil
	case SelectDeclared:
		return SelectDeclared, nil
	default:
		return "", fmt.Errorf("unknown substitute selection %q", s)
	}
}

// Rule 替代规则
type Rule struct {
	Pattern     string
	Replacement string

	re      *regexp.Regexp
	literal int
}

// NewRule 创建替代规则，模式中含 * 或 ? 时按通配符匹配整个料号
func NewRule(pattern, replacement string) Rule {
	pattern = strings.TrimSpace(pattern)
	r := Rule{
		Pattern:     pattern,
		Replacement: strings.TrimSpace(replacement),
		literal:     utf8.RuneCountInString(strings.NewReplacer("*", "", "?", "").Replace(pattern)),
	}
	if IsWildcard(pattern) {
		r.re = globToRegexp(pattern)
	}
	return r
}

// IsWildcard 模式是否包含通配符
func IsWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Match 判断料号是否命中
func (r Rule) Match(id string) bool {
	if r.Pattern == "" {
		return false
	}
	if r.re != nil {
		return r.re.MatchString(id)
	}
	return r.Pattern == id
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, ch := range pattern {
		switch ch {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Table 料号映射表
type Table struct {
	// Primary 旧料号 -> 新料号（精确匹配）
	Primary map[string]string
	// Substitutes 替代规则，按声明顺序
	Substitutes []Rule
	// Attributes 新料号的晶圆品名/规格
	Attributes map[string]model.Attributes
	// NewIDs 映射表中出现的新料号，按首次出现顺序
	NewIDs []string
}

// NewTable 创建空映射表
func NewTable() *Table {
	return &Table{
		Primary:    make(map[string]string),
		Attributes: make(map[string]model.Attributes),
	}
}

// AddPrimary 添加主映射，已存在的旧料号保持先写入的值
func (t *Table) AddPrimary(oldID, newID string) bool {
	oldID = strings.TrimSpace(oldID)
	newID = strings.TrimSpace(newID)
	if oldID == "" || newID == "" {
		return false
	}
	if _, exists := t.Primary[oldID]; exists {
		return false
	}
	t.Primary[oldID] = newID
	return true
}

// AddSubstitute 追加替代规则
func (t *Table) AddSubstitute(pattern, replacement string) {
	rule := NewRule(pattern, replacement)
	if rule.Pattern == "" || rule.Replacement == "" {
		return
	}
	t.Substitutes = append(t.Substitutes, rule)
}

// AddNewID 记录新料号及其属性
func (t *Table) AddNewID(id string, attrs model.Attributes) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	existing, seen := t.Attributes[id]
	if !seen {
		t.NewIDs = append(t.NewIDs, id)
	}
	t.Attributes[id] = existing.Merge(attrs)
}

// Len 主映射与替代规则总数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Primary) + len(t.Substitutes)
}
