package database

import (
	"encoding/json"
	"fmt"
	"sync"

	"studyhabit-backend/pkg/logs"
)

// 存储键布局：每个逻辑集合一个键，外加版本标记和当前会话两个标量键。
const (
	keyProfiles      = "local_users"
	keySessions      = "local_sessions"
	keyInvitations   = "local_invitations"
	keyOrganizations = "local_organizations"
	keyCurrentUser   = "local_current_user"
	keyVersion       = "local_storage_version"
)

// Record 是集合中的一条无模式记录（列名即 JSON 字段名）。
type Record = map[string]interface{}

// Storage 底层键值存储接口。Get 对缺失或读取失败统一返回 ok=false，
// 集合层面据此降级为空集合，绝不向上传播解析错误。
type Storage interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
	Delete(key string) error
	Close() error
}

// StorageConfig 存储引擎配置
type StorageConfig struct {
	Driver      string // "file" | "sqlite" | "postgres"
	DataDir     string
	SQLitePath  string
	PostgresDSN string
}

// NewStorage 根据配置选择存储引擎
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStorage(cfg.DataDir), nil
	case "sqlite":
		return NewSQLiteStorage(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStorage(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// Cached storage (initialized once per cold start)
var (
	cachedStorage Storage
	cachedConfig  StorageConfig
	storageMutex  sync.Mutex
)

// GetCachedStorage 获取进程级共享存储实例（单例 + 配置变更时重建）。
// 在 serverless 冷启动间复用，避免每个请求重新打开连接。
func GetCachedStorage(cfg StorageConfig) (Storage, error) {
	storageMutex.Lock()
	defer storageMutex.Unlock()

	if cachedStorage != nil && cachedConfig == cfg {
		return cachedStorage, nil
	}

	if cachedStorage != nil {
		logs.Logger.Debug("storage configuration changed, recreating")
		_ = cachedStorage.Close()
		cachedStorage = nil
	}

	s, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	cachedStorage = s
	cachedConfig = cfg
	return s, nil
}

// storageKeyFor 表名到存储键的映射；未知表退化为 local_ 前缀。
func storageKeyFor(table string) string {
	switch table {
	case "profiles":
		return keyProfiles
	case "study_sessions":
		return keySessions
	case "invitations":
		return keyInvitations
	case "organizations":
		return keyOrganizations
	default:
		return "local_" + table
	}
}

// readCollection loads the full record sequence for a storage key.
// Absent or corrupt data yields an empty collection.
func readCollection(s Storage, key string) []Record {
	data, ok := s.Get(key)
	if !ok {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		logs.Logger.WithField("key", key).Warn("discarding unparsable collection data")
		return nil
	}
	return records
}

// writeCollection serializes and persists the full record sequence,
// replacing prior contents.
func writeCollection(s Storage, key string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal collection %s: %w", key, err)
	}
	return s.Put(key, data)
}
