package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"studyhabit-backend/pkg/logs"
)

// PostgresStorage PostgreSQL 键值存储实现。
// 仍是整集合读写的模拟层，只是把状态放到共享数据库里，
// 供多实例部署复用同一份数据。
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage 连接 PostgreSQL 并初始化 kv 表。
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires a DSN")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres storage: %w", err)
	}

	// serverless 友好的小连接池
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS studyhabit_kv (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize kv table: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// Get 读取键对应的原始字节；缺失或查询失败返回 ok=false。
func (s *PostgresStorage) Get(key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM studyhabit_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logs.Logger.WithError(err).WithField("key", key).Warn("postgres read failed")
		}
		return nil, false
	}
	return value, true
}

// Put 写入（upsert）键对应内容。
func (s *PostgresStorage) Put(key string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO studyhabit_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, data,
	)
	return err
}

// Delete 删除键；键不存在不算错误。
func (s *PostgresStorage) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM studyhabit_kv WHERE key = $1`, key)
	return err
}

// Close 关闭连接池
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
