package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type operation int

const (
	opSelect operation = iota
	opInsert
	opUpdate
	opDelete
)

type filterKind int

// 过滤器为带标签的变体类型：Eq | Gte | Lte | In，
// 避免把比较语义编码进列名字符串。
const (
	filterEq filterKind = iota
	filterGte
	filterLte
	filterIn
)

type filter struct {
	kind   filterKind
	column string
	value  interface{}
	values []interface{}
}

type sortKey struct {
	column    string
	ascending bool
}

// Query 是对单个集合的惰性查询/变更描述符。
// 链式方法不求值，只累积描述；Exec/Single/Go 触发执行。
// 构建器不可变：每个链式方法返回新的 Query 值，旧引用可安全复用。
type Query struct {
	client  *Client
	table   string
	op      operation
	payload Record
	columns string
	filters []filter
	order   *sortKey
	limit   int
}

func (q *Query) clone() *Query {
	nq := *q
	nq.filters = make([]filter, len(q.filters), len(q.filters)+1)
	copy(nq.filters, q.filters)
	if q.order != nil {
		o := *q.order
		nq.order = &o
	}
	return &nq
}

// Eq 精确匹配过滤
func (q *Query) Eq(column string, value interface{}) *Query {
	nq := q.clone()
	nq.filters = append(nq.filters, filter{kind: filterEq, column: column, value: value})
	return nq
}

// Gte 下界过滤（含端点）
func (q *Query) Gte(column string, value interface{}) *Query {
	nq := q.clone()
	nq.filters = append(nq.filters, filter{kind: filterGte, column: column, value: value})
	return nq
}

// Lte 上界过滤（含端点）
func (q *Query) Lte(column string, value interface{}) *Query {
	nq := q.clone()
	nq.filters = append(nq.filters, filter{kind: filterLte, column: column, value: value})
	return nq
}

// In 集合成员过滤
func (q *Query) In(column string, values []interface{}) *Query {
	nq := q.clone()
	nq.filters = append(nq.filters, filter{kind: filterIn, column: column, values: values})
	return nq
}

// Order 设置唯一排序键；后一次调用覆盖前一次。排序稳定，
// 相等键保持插入顺序。
func (q *Query) Order(column string, ascending bool) *Query {
	nq := q.clone()
	nq.order = &sortKey{column: column, ascending: ascending}
	return nq
}

// Limit 截断结果到前 n 条
func (q *Query) Limit(n int) *Query {
	nq := q.clone()
	nq.limit = n
	return nq
}

// Select 在变更后追加返回列说明（与托管客户端接口对齐；
// 本地层不做列投影，始终返回完整记录）。
func (q *Query) Select(columns ...string) *Query {
	nq := q.clone()
	nq.columns = strings.Join(columns, ", ")
	return nq
}

// Exec 执行完整管道（过滤 → 排序 → 截断，或对应变更）并返回结果。
func (q *Query) Exec(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch q.op {
	case opSelect:
		return q.client.runSelect(q)
	case opInsert:
		return q.client.runInsert(q)
	case opUpdate:
		return q.client.runUpdate(q)
	case opDelete:
		return q.client.runDelete(q)
	default:
		return nil, fmt.Errorf("unknown operation %d", q.op)
	}
}

// Single 执行管道并恰好返回一条记录：结果非空时为当前排序下的
// 第一条（不检测重复匹配），为空时返回 ErrNoRows。
func (q *Query) Single(ctx context.Context) (Record, error) {
	records, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records[0], nil
}

// QueryResult 异步执行的结果对
type QueryResult struct {
	Data []Record
	Err  error
}

// Go 以 future 形式执行查询：立即返回通道，结果在后台求值后送达。
// 与远程客户端的可等待契约对齐；两个跨通道交错的变更之间没有
// 额外的隔离保证。
func (q *Query) Go(ctx context.Context) <-chan QueryResult {
	ch := make(chan QueryResult, 1)
	go func() {
		data, err := q.Exec(ctx)
		ch <- QueryResult{Data: data, Err: err}
	}()
	return ch
}

// matches 判断一条记录是否满足全部过滤器
func matches(rec Record, filters []filter) bool {
	for _, f := range filters {
		v := rec[f.column]
		switch f.kind {
		case filterEq:
			if !valuesEqual(v, f.value) {
				return false
			}
		case filterGte:
			if compareValues(v, f.value) < 0 {
				return false
			}
		case filterLte:
			if compareValues(v, f.value) > 0 {
				return false
			}
		case filterIn:
			found := false
			for _, candidate := range f.values {
				if valuesEqual(v, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// applyOrder 按排序键稳定排序
func applyOrder(records []Record, key *sortKey) {
	if key == nil {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		cmp := compareValues(records[i][key.column], records[j][key.column])
		if key.ascending {
			return cmp < 0
		}
		return cmp > 0
	})
}

// toFloat 数值归一化。集合经 JSON 反序列化后数字一律是 float64，
// 但 Go 侧构造的过滤值可能是各种整型。
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// valuesEqual 按存储值的自然类型比较相等
func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// compareValues 按存储值的自然顺序比较：数字按大小，
// 字符串按字典序（RFC3339 时间戳因此排序正确）。
func compareValues(a, b interface{}) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
