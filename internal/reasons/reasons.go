// Package reasons loads the rejection phrases and picks one per request.
package reasons

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when a reasons source holds no usable phrases.
var ErrEmpty = errors.New("reasons: no reasons loaded")

// Load reads a list of reasons from a .json array or a .yaml sequence. Blank
// entries are dropped; a source left empty afterwards is an error.
func Load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reasons: %w", err)
	}

	var list []string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &list)
	case ".json", "":
		err = json.Unmarshal(b, &list)
	default:
		return nil, fmt.Errorf("reasons: unsupported file format %q (use .json or .yaml/.yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("reasons: parse %s: %w", path, err)
	}

	out := list[:0]
	for _, r := range list {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w from %s", ErrEmpty, path)
	}
	return out, nil
}

// Selector returns uniformly random reasons from an immutable list.
type Selector struct {
	list []string
	intn func(n int) int
}

// NewSelector copies list. It fails on an empty list so the process never
// starts without something to say.
func NewSelector(list []string) (*Selector, error) {
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	return &Selector{
		list: append([]string(nil), list...),
		intn: rand.Intn,
	}, nil
}

// Pick returns list[i] for a uniform i in [0, len(list)).
func (s *Selector) Pick() string {
	return s.list[s.intn(len(s.list))]
}

// Len returns the number of loaded reasons.
func (s *Selector) Len() int { return len(s.list) }
