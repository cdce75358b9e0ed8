package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// File stores each key as <dir>/<key>.json on an afero filesystem. Writes go
// to a temporary file that is synced and then renamed into place.
type File struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFile prepares dir on fsys and returns a File store rooted there.
func NewFile(fsys afero.Fs, dir string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if ok, _ := afero.DirExists(fsys, dir); !ok {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	logger.Debug("storage.file.ready", "dir", dir)
	return &File{fs: fsys, dir: dir, logger: logger}, nil
}

func (f *File) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (f *File) Set(ctx context.Context, key string, value []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := path + ".tmp"
	if err := f.writeSynced(tmp, value); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// writeSynced writes value to name and flushes it to stable storage before
// closing.
func (f *File) writeSynced(name string, value []byte) error {
	file, err := f.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(value); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync: %w", err)
	}
	return file.Close()
}

func (f *File) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// HealthCheck verifies the storage directory is still reachable.
func (f *File) HealthCheck(ctx context.Context) error {
	info, err := f.fs.Stat(f.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.dir)
	}
	return nil
}
