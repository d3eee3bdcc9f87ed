// Package storage persists whole named records as JSON snapshots. Every Save
// rewrites the full record; there are no partial updates or transactions
// spanning records.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned by Load when no record has been saved under name.
var ErrNotFound = errors.New("storage: record not found")

// codec mirrors encoding/json behaviour so files stay readable by other tools.
var codec = sonic.ConfigStd

// Backend is the persistence abstraction shared by the counter, activity and
// analytics stores. Implementations must be safe for concurrent use.
type Backend interface {
	// Load decodes the record stored under name into v. It returns
	// ErrNotFound when the record is absent and a decode error when the
	// stored bytes are not valid JSON for v.
	Load(name string, v any) error

	// Save encodes v and replaces the record stored under name.
	Save(name string, v any) error

	// Size reports the bytes currently used on disk (0 for in-memory).
	Size() (int64, error)

	// Healthy returns nil if the backend can still be written to.
	Healthy() error

	// Path returns the filesystem location of the backend ("" for in-memory).
	Path() string

	Close() error
}

// Backend kinds accepted by Open.
const (
	KindFile = "file"
	KindBolt = "bolt"
)

// Open creates the backend of the given kind rooted at dataDir.
func Open(kind, dataDir string) (Backend, error) {
	switch kind {
	case KindFile, "":
		return OpenFile(dataDir)
	case KindBolt:
		return OpenBolt(filepath.Join(dataDir, "state.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}

// validName rejects record names that could escape the data directory or be
// ambiguous as bbolt keys.
func validName(name string) error {
	if name == "" {
		return errors.New("storage: empty record name")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("storage: invalid record name %q", name)
	}
	return nil
}
