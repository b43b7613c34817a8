package database

import (
	"os"
	"path/filepath"

	"studyhabit-backend/pkg/logs"
)

// FileStorage 本地文件存储实现：每个存储键一个 JSON 文件。
type FileStorage struct {
	dataDir string
}

// NewFileStorage 创建本地文件存储。
// 在只读文件系统（Vercel 等）中逐级回退到临时目录。
func NewFileStorage(dataDir string) *FileStorage {
	if dataDir == "" {
		dataDir = "./data"
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logs.Logger.WithError(err).Warn("failed to create data directory")
		dataDir = filepath.Join(os.TempDir(), "studyhabit-data")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			logs.Logger.WithError(err).Warn("failed to create temp data directory")
			dataDir = "."
		}
	}

	return &FileStorage{dataDir: dataDir}
}

func (s *FileStorage) filePath(key string) string {
	return filepath.Join(s.dataDir, key+".json")
}

// Get 读取键对应的原始字节；文件缺失或不可读返回 ok=false。
func (s *FileStorage) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			logs.Logger.WithError(err).WithField("key", key).Warn("storage read failed")
		}
		return nil, false
	}
	return data, true
}

// Put 整体替换键对应的内容（单次同步写）。
func (s *FileStorage) Put(key string, data []byte) error {
	return os.WriteFile(s.filePath(key), data, 0644)
}

// Delete 删除键；键不存在不算错误。
func (s *FileStorage) Delete(key string) error {
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close 文件存储无需关闭
func (s *FileStorage) Close() error {
	return nil
}
