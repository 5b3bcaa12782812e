package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore はローカルディレクトリに1キー1ファイルで保存するKeyValueStore。
// 書き込みは一時ファイルへの書き出しとrenameで行い、読み手が書きかけの値を見ることはない。
type FileStore struct {
	root string
}

// NewFileStore はrootを保存先とするFileStoreを生成する。ディレクトリがなければ作成する。
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file store root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create file store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// pathFor はキーをroot直下のファイル名に変換する。
// "/"や".."を含むキーもエスケープされるため、root外を指すことはない。
func (s *FileStore) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	return filepath.Join(s.root, url.PathEscape(key)+".json"), nil
}

// Get はファイルの内容を返す。ファイルがなければfound=false。
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set は一時ファイルに書き出してからrenameで置き換える。
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

// Remove はファイルを削除する。ファイルがなければ何もしない。
func (s *FileStore) Remove(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Ping はrootディレクトリにアクセスできるかを確認する。
func (s *FileStore) Ping(_ context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("file store root unavailable: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ KeyValueStore = (*FileStore)(nil)
	_ Pinger        = (*FileStore)(nil)
)
