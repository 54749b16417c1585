package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HASHDB_DATA_DIR", "")
	t.Setenv("HASHDB_PORT", "")

	cfg := Load()

	assert.Equal(t, "data/", cfg.DataDir)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HASHDB_DATA_DIR", "/var/lib/hashdb")
	t.Setenv("HASHDB_PORT", "9000")

	cfg := Load()

	assert.Equal(t, "/var/lib/hashdb", cfg.DataDir)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadIgnoresMalformedPort(t *testing.T) {
	t.Setenv("HASHDB_PORT", "not-a-port")

	cfg := Load()

	assert.Equal(t, DefaultPort, cfg.Port)
}
