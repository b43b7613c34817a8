package database

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Client 本地持久层客户端：托管后端的离线替身。
// 通过 From 暴露查询/变更，通过 Auth 暴露会话状态机。
//
// mu 串行化所有“读出-修改-写回”变更。原始实现跑在单线程事件循环里，
// 天然没有并发写；Go 侧用一把显式互斥锁补上同一进程内的等价保证。
// 跨进程（多实例共享同一存储）仍是集合粒度的 last-write-wins，无合并。
type Client struct {
	storage Storage
	auth    *Auth
	mu      sync.Mutex
}

// New 创建客户端：先执行版本守卫（必要时破坏性重置种子数据），
// 再从持久化会话恢复认证状态。
func New(storage Storage) (*Client, error) {
	c := &Client{storage: storage}
	c.auth = newAuth(c)

	if err := c.ensureSeed(); err != nil {
		return nil, fmt.Errorf("seed check failed: %w", err)
	}
	c.auth.restore()

	return c, nil
}

// Auth 返回会话状态机
func (c *Client) Auth() *Auth {
	return c.auth
}

// Table 单个集合的操作入口
type Table struct {
	client *Client
	name   string
}

// From 定位到一个集合（本地层中“表”的等价物）
func (c *Client) From(table string) *Table {
	return &Table{client: c, name: table}
}

// Select 构建查询描述符；列投影参数仅为接口对齐，本地层返回完整记录。
func (t *Table) Select(columns ...string) *Query {
	q := &Query{client: t.client, table: t.name, op: opSelect}
	return q.Select(columns...)
}

// Insert 构建插入描述符
func (t *Table) Insert(record Record) *Query {
	return &Query{client: t.client, table: t.name, op: opInsert, payload: record}
}

// Update 构建更新描述符；查找键通过链式 Eq 提供（id 或单一备用唯一键）。
func (t *Table) Update(patch Record) *Query {
	return &Query{client: t.client, table: t.name, op: opUpdate, payload: patch}
}

// Delete 构建删除描述符；必须链式 Eq("id", …) 指定目标。
func (t *Table) Delete() *Query {
	return &Query{client: t.client, table: t.name, op: opDelete}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (c *Client) runSelect(q *Query) ([]Record, error) {
	records := readCollection(c.storage, storageKeyFor(q.table))

	filtered := make([]Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, q.filters) {
			filtered = append(filtered, rec)
		}
	}

	applyOrder(filtered, q.order)

	if q.limit > 0 && len(filtered) > q.limit {
		filtered = filtered[:q.limit]
	}

	return filtered, nil
}

// runInsert 追加一条记录：标识符和时间戳由引擎分配，调用方提供的
// 同名字段会被覆盖。
//
// 标识符沿用 {表名}-{毫秒时间戳} 方案，与托管替身的行为保持一致；
// 同一毫秒内的两次插入会产生相同 id（见 DESIGN.md 的取舍记录）。
func (c *Client) runInsert(q *Query) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := storageKeyFor(q.table)
	records := readCollection(c.storage, key)

	now := nowRFC3339()
	rec := Record{}
	for k, v := range q.payload {
		rec[k] = v
	}
	rec["id"] = fmt.Sprintf("%s-%d", q.table, time.Now().UnixMilli())
	rec["created_at"] = now
	rec["updated_at"] = now

	records = append(records, rec)
	if err := writeCollection(c.storage, key, records); err != nil {
		return nil, err
	}

	return []Record{rec}, nil
}

// lookupKey 提取更新操作的唯一查找键：优先主键 id，否则恰好一个
// Eq 过滤器充当备用唯一键（如 invitation_code）。不支持复合过滤。
func lookupKey(filters []filter) (column string, value interface{}, ok bool) {
	var eqs []filter
	for _, f := range filters {
		if f.kind != filterEq {
			continue
		}
		if f.column == "id" {
			return "id", f.value, true
		}
		eqs = append(eqs, f)
	}
	if len(eqs) == 1 {
		return eqs[0].column, eqs[0].value, true
	}
	return "", nil, false
}

// runUpdate 将补丁合并到匹配记录上并回写；若目标是当前登录的
// Profile，同步刷新缓存会话。
func (c *Client) runUpdate(q *Query) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	column, value, ok := lookupKey(q.filters)
	if !ok {
		return nil, ErrNotFound
	}

	key := storageKeyFor(q.table)
	records := readCollection(c.storage, key)

	for i, rec := range records {
		if !valuesEqual(rec[column], value) {
			continue
		}

		for k, v := range q.payload {
			if k == "id" || k == "created_at" {
				continue
			}
			rec[k] = v
		}
		rec["updated_at"] = nowRFC3339()
		records[i] = rec

		if err := writeCollection(c.storage, key, records); err != nil {
			return nil, err
		}

		if q.table == "profiles" {
			c.auth.refreshIfCurrent(rec)
		}

		return []Record{rec}, nil
	}

	return nil, ErrNotFound
}

// runDelete 按主键移除一条记录；不级联其它集合中的关联记录。
func (c *Client) runDelete(q *Query) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id interface{}
	for _, f := range q.filters {
		if f.kind == filterEq && f.column == "id" {
			id = f.value
			break
		}
	}
	if id == nil {
		return nil, fmt.Errorf("delete requires an id filter")
	}

	key := storageKeyFor(q.table)
	records := readCollection(c.storage, key)

	kept := make([]Record, 0, len(records))
	removed := false
	for _, rec := range records {
		if valuesEqual(rec["id"], id) {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}

	if !removed {
		return nil, ErrNotFound
	}

	if err := writeCollection(c.storage, key, kept); err != nil {
		return nil, err
	}
	return nil, nil
}

// Decode 把无模式记录转换为具体模型（JSON 往返）
func Decode(src interface{}, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// ToRecord 把具体模型转换为无模式记录
func ToRecord(src interface{}) (Record, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Cached client (initialized once per cold start)
var (
	cachedClient       *Client
	cachedClientConfig StorageConfig
	clientMutex        sync.Mutex
)

// GetCachedClient 获取进程级共享客户端；配置变更时重建。
func GetCachedClient(cfg StorageConfig) (*Client, error) {
	clientMutex.Lock()
	defer clientMutex.Unlock()

	if cachedClient != nil && cachedClientConfig == cfg {
		return cachedClient, nil
	}

	storage, err := GetCachedStorage(cfg)
	if err != nil {
		return nil, err
	}
	client, err := New(storage)
	if err != nil {
		return nil, err
	}

	cachedClient = client
	cachedClientConfig = cfg
	return client, nil
}
