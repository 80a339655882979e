package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileStore 基于文件系统的键值存储，每个键一个文件
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(fsys afero.Fs, dir string) (*FileStore, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	return &FileStore{fs: fsys, dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// Get 读取键值
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	return data, nil
}

// Set 写入键值，先写临时文件再重命名，避免写到一半崩溃留下残缺数据
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("重命名 %s 失败: %w", key, err)
	}
	return nil
}

// Delete 删除键，不存在时不报错
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除 %s 失败: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
