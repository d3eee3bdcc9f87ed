package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Compile-time proof that FileBackend satisfies the Backend interface.
var _ Backend = (*FileBackend)(nil)

// FileBackend stores each record as <dir>/<name>.json.
type FileBackend struct {
	mu  sync.Mutex
	dir string
}

// OpenFile creates dir if needed and returns a backend writing into it.
func OpenFile(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) file(name string) string {
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend) Load(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := os.ReadFile(b.file(name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", name, err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return nil
}

// Save writes to a temporary file and renames it over the record so a crash
// mid-write never leaves a truncated snapshot behind.
func (b *FileBackend) Save(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: save %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: save %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), b.file(name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: save %s: %w", name, err)
	}
	return nil
}

// Size sums the sizes of every record file in the directory.
func (b *FileBackend) Size() (int64, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Healthy probes that the directory still accepts new files.
func (b *FileBackend) Healthy() error {
	f, err := os.CreateTemp(b.dir, ".healthz.*")
	if err != nil {
		return fmt.Errorf("storage: %s not writable: %w", b.dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (b *FileBackend) Path() string { return b.dir }

// Close is a no-op; files are closed after every write.
func (b *FileBackend) Close() error { return nil }
