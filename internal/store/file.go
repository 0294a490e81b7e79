package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/utils"
)

const fileExt = ".json"

// File keeps one JSON file per key inside a directory.
type File struct {
	dir   string
	quota int64
}

// OpenFile uses dir as the store root, creating it if needed.
func OpenFile(dir string, opt Options) (*File, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create store dir: %w", diskFull(err))
	}
	return &File{dir: dir, quota: opt.QuotaBytes}, nil
}

func (f *File) path(key string) string { return filepath.Join(f.dir, key+fileExt) }

func (f *File) Put(_ context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if f.quota > 0 {
		used, err := utils.DirSize(f.dir)
		if err != nil {
			return fmt.Errorf("measure store: %w", err)
		}
		if info, err := os.Stat(f.path(key)); err == nil {
			used -= info.Size()
		}
		if err := checkQuota(key, f.quota, used, int64(len(value))); err != nil {
			return err
		}
	}
	if err := utils.SafeWriteFile(f.path(key), value); err != nil {
		return fmt.Errorf("save dataset %s: %w", key, diskFull(err))
	}
	return nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", key, err)
	}
	return b, nil
}

func (f *File) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", key, err)
	}
	return nil
}

func (f *File) List(_ context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	var out []Entry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Key:       strings.TrimSuffix(name, fileExt),
			Size:      info.Size(),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (f *File) Close() error { return nil }
