package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTopology(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadTopologyParsesShardBindings(t *testing.T) {
	path := writeTopology(t, `{
		"userShards": [{"id":"u0","url":"http://node-0:8080","lo":0,"hi":9223372036854775807}],
		"groupShards": [{"id":"g0","url":"http://node-0:8080","lo":0,"hi":18446744073709551615}]
	}`)

	userShards, groupShards, err := loadTopology(path)
	require.NoError(t, err)
	require.Len(t, userShards, 1)
	require.Len(t, groupShards, 1)
	assert.Equal(t, "u0", userShards[0].ID)
	assert.Equal(t, uint64(0), userShards[0].Range.Lo)
	assert.NotNil(t, userShards[0].Client)
}

func TestLoadTopologyRejectsMissingShardGroup(t *testing.T) {
	path := writeTopology(t, `{"userShards": [{"id":"u0","url":"http://node-0:8080","lo":0,"hi":1}], "groupShards": []}`)

	_, _, err := loadTopology(path)
	require.Error(t, err)
}

func TestLoadTopologyRejectsMissingFile(t *testing.T) {
	_, _, err := loadTopology(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}

func TestLoadTopologyRejectsMalformedJSON(t *testing.T) {
	path := writeTopology(t, `not json`)
	_, _, err := loadTopology(path)
	require.Error(t, err)
}
