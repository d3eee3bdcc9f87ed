package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMMDB_Missing(t *testing.T) {
	_, err := OpenMMDB(filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb"))
	assert.Error(t, err)
}

func TestOpenMMDB_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("definitely not maxmind"), 0o600))

	_, err := OpenMMDB(path)
	assert.Error(t, err)
}

func TestNoLocator(t *testing.T) {
	assert.Empty(t, NoLocator{}.Country("8.8.8.8"))
}
