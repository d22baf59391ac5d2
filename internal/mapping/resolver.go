package mapping

import (
	"strings"

	"github.com/samber/lo"

	"masterplan/internal/model"
)

// Resolver 料号解析器：先主映射，再替代规则，直到结果不再变化
type Resolver struct {
	table     *Table
	selection Selection
}

// NewResolver 创建解析器，table 为 nil 时只做去空白
func NewResolver(table *Table, selection Selection) *Resolver {
	if table == nil {
		table = NewTable()
	}
	if selection == "" {
		selection = SelectLongest
	}
	return &Resolver{table: table, selection: selection}
}

// Table 返回底层映射表
func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve 将原始料号解析为规范料号。
// 未命中任何规则时返回去空白后的原值；映射成环时返回环内字典序最小的料号。
func (r *Resolver) Resolve(raw string) string {
	cur := strings.TrimSpace(raw)
	if cur == "" {
		return ""
	}

	seen := make(map[string]int)
	var path []string
	for {
		if at, ok := seen[cur]; ok {
			return lo.Min(path[at:])
		}
		seen[cur] = len(path)
		path = append(path, cur)

		next := r.step(cur)
		if next == cur {
			return cur
		}
		cur = next
	}
}

// CanonicalTable 返回新料号与属性按解析结果归并后的映射表副本。
// 链式映射 (A->B, B->C) 中的 B 归并到 C，属性按声明顺序补全空白字段。
func (r *Resolver) CanonicalTable() *Table {
	out := &Table{
		Primary:     r.table.Primary,
		Substitutes: r.table.Substitutes,
		Attributes:  make(map[string]model.Attributes, len(r.table.Attributes)),
	}
	for _, id := range r.table.NewIDs {
		out.AddNewID(r.Resolve(id), r.table.Attributes[id])
	}
	return out
}

func (r *Resolver) step(id string) string {
	if mapped, ok := r.table.Primary[id]; ok {
		id = mapped
	}
	if rule, ok := r.matchSubstitute(id); ok {
		id = rule.Replacement
	}
	return id
}

func (r *Resolver) matchSubstitute(id string) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, rule := range r.table.Substitutes {
		if !rule.Match(id) {
			continue
		}
		if r.selection == SelectDeclared {
			return rule, true
		}
		if !found || rule.literal > best.literal {
			best = rule
			found = true
		}
	}
	return best, found
}
