package serve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTables(t *testing.T) {
	tables, err := parseTables("temp:8, users:4:42")
	require.NoError(t, err)
	assert.Equal(t, []common.TableConfig{
		{Name: "temp", AppID: 1, PartitionCount: 8},
		{Name: "users", AppID: 42, PartitionCount: 4},
	}, tables)

	for _, invalid := range []string{"", "temp", "temp:0", "temp:x", "temp:1:x", "a:1:2:3"} {
		_, err := parseTables(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestReadTablesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tables:
  - name: temp
    app_id: 3
    partition_count: 16
  - name: other
    app_id: 4
    partition_count: 2
`), 0o644))

	tables, err := readTablesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []common.TableConfig{
		{Name: "temp", AppID: 3, PartitionCount: 16},
		{Name: "other", AppID: 4, PartitionCount: 2},
	}, tables)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tables: []\n"), 0o644))
	_, err = readTablesFile(empty)
	assert.Error(t, err)

	_, err = readTablesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
