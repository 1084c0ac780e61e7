package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
	assert.Len(t, cfg.Participants, 2)
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conclave.json")
	content := `{
		"participants": [
			{"id": "offline", "provider": "static", "model": "canned", "role": "generalist"}
		],
		"engine": {
			"max_participants": 3,
			"default_max_rounds": 8
		},
		"data_dir": "` + dir + `"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	require.Len(t, cfg.Participants, 1)
	assert.Equal(t, "offline", cfg.Participants[0].ID)
	assert.Equal(t, 3, cfg.Engine.MaxParticipants)
	assert.Equal(t, 8, cfg.Engine.DefaultMaxRounds)
	// Unset fields keep their defaults.
	assert.Equal(t, int64(60_000), cfg.Engine.DefaultTimeLimitMs)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "conclave.log"), cfg.Logging.File)
}

func TestLoaderRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
