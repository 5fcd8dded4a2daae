package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFullNodeRoundtrip(t *testing.T) {
	c := DefaultFullNode()

	var buf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&buf).Encode(c))

	c2, err := FromReader(&buf, DefaultFullNode())
	require.NoError(t, err)

	assert.Equal(t, c, c2)
}

func TestReaderOverrides(t *testing.T) {
	cfg, err := FromReader(bytes.NewReader([]byte(`
[API]
ListenAddress = "0.0.0.0:5231"
Timeout = "10s"

[Mpool]
SizeLimitHigh = 50000
`)), DefaultFullNode())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0:5231", cfg.API.ListenAddress)
	assert.Equal(t, Duration(10*time.Second), cfg.API.Timeout)
	assert.Equal(t, 50000, cfg.Mpool.SizeLimitHigh)

	// untouched fields keep their defaults
	def := DefaultFullNode()
	assert.Equal(t, def.Mpool.SizeLimitLow, cfg.Mpool.SizeLimitLow)
	assert.Equal(t, def.Drand.Servers, cfg.Drand.Servers)
}

func TestFileRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	c := DefaultFullNode()
	c.API.ListenAddress = "127.0.0.1:9999"
	c.Mpool.PriorityAddrs = []string{"t0100"}

	require.NoError(t, WriteFile(path, c))

	c2, err := FromFile(path, DefaultFullNode())
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}

func TestMissingFileReturnsDefault(t *testing.T) {
	cfg, err := FromFile(filepath.Join(t.TempDir(), "missing.toml"), DefaultFullNode())
	require.NoError(t, err)
	assert.Equal(t, DefaultFullNode(), cfg)
}
