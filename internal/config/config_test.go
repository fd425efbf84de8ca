package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/elannet/internal/elan"
	"github.com/born-ml/elannet/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, weights.DefaultCacheDir(), cfg.Cache.Dir)
	assert.True(t, cfg.Cache.CheckHash)
	assert.Equal(t, 0, cfg.Runtime.Workers)
	assert.Equal(t, "elannet", cfg.Model.Variant)
	assert.Equal(t, 1000, cfg.Model.NumClasses)
	assert.True(t, cfg.UI.Progress)

	_, ok := cfg.WeightsURL(elan.Large)
	assert.False(t, ok)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
cache:
  dir: /var/cache/elannet
  check_hash: false
runtime:
  workers: 4
model:
  variant: elannet_nano
  num_classes: 80
weights:
  urls:
    elannet_tiny: https://example.com/elannet_tiny-0123abcd.safetensors
ui:
  progress: false
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/elannet", cfg.Cache.Dir)
	assert.False(t, cfg.Cache.CheckHash)
	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.Equal(t, "elannet_nano", cfg.Model.Variant)
	assert.Equal(t, 80, cfg.Model.NumClasses)

	url, ok := cfg.WeightsURL(elan.Tiny)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/elannet_tiny-0123abcd.safetensors", url)

	opts := cfg.WeightsOptions(&bytes.Buffer{}, nil)
	assert.Nil(t, opts.Progress, "ui.progress is off")
	assert.False(t, opts.CheckHash)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "runtime:\n  workers: 4\n")
	t.Setenv("ELANNET_RUNTIME_WORKERS", "2")
	t.Setenv("ELANNET_CACHE_DIR", "/tmp/ckpt")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Runtime.Workers)
	assert.Equal(t, "/tmp/ckpt", cfg.Cache.Dir)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative workers", "runtime:\n  workers: -1\n"},
		{"zero classes", "model:\n  num_classes: 0\n"},
		{"unknown variant", "model:\n  variant: elannet_xl\n"},
		{"unknown url key", "weights:\n  urls:\n    resnet: https://example.com/r.pth\n"},
		{"bad yaml", "model: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("ELANNET_TEST_ROOT", "/srv")

	assert.Equal(t, filepath.Join(home, "ckpt"), expandPath("~/ckpt"))
	assert.Equal(t, "/srv/ckpt", expandPath("$ELANNET_TEST_ROOT/ckpt"))
	assert.Equal(t, "/abs", expandPath("/abs"))
	assert.Equal(t, "", expandPath(""))
}

func TestWeightsOptions_Progress(t *testing.T) {
	cfg := &Config{UI: UIConfig{Progress: true}, Cache: CacheConfig{Dir: "/c", CheckHash: true}}
	var buf bytes.Buffer

	opts := cfg.WeightsOptions(&buf, nil)
	assert.Same(t, &buf, opts.Progress)
	assert.Equal(t, "/c", opts.CacheDir)
	assert.True(t, opts.CheckHash)
}
