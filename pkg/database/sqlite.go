package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"studyhabit-backend/pkg/logs"
)

// SQLiteStorage 单文件 SQLite 键值存储实现（纯 Go 驱动，无 CGO）。
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 打开（或创建）SQLite 存储文件并初始化 kv 表。
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		path = "./studyhabit.db"
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
	}

	// 单写者：避免多连接下的 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	schema := `CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize kv table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Get 读取键对应的原始字节；缺失或查询失败返回 ok=false。
func (s *SQLiteStorage) Get(key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logs.Logger.WithError(err).WithField("key", key).Warn("sqlite read failed")
		}
		return nil, false
	}
	return value, true
}

// Put 写入（upsert）键对应内容。
func (s *SQLiteStorage) Put(key string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Delete 删除键；键不存在不算错误。
func (s *SQLiteStorage) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Close 关闭数据库连接
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
