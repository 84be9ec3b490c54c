package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("input", "campaigns"), cfg.Paths.CampaignsDir)
	assert.Equal(t, filepath.Join("input", "assets"), cfg.Paths.AssetsDir)
	assert.Equal(t, "output", cfg.Paths.OutputDir)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.Gemini.ImageModel)
	assert.Equal(t, 1, cfg.Generation.Workers)
	assert.NoError(t, cfg.Validate())
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CAMPAIGN_CAMPAIGNS_DIR", "CAMPAIGN_ASSETS_DIR", "CAMPAIGN_OUTPUT_DIR", "CAMPAIGN_LOG_DIR",
		"CAMPAIGN_CREDENTIALS_FILE", "CAMPAIGN_IMAGE_MODEL", "CAMPAIGN_TEXT_MODEL", "CAMPAIGN_WORKERS",
		"CAMPAIGN_S3_BUCKET", "AWS_REGION", "CAMPAIGN_LOG_LEVEL", "CAMPAIGN_API_ADDR", "CAMPAIGN_LEDGER_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Generation.Workers = 4
	cfg.Sync.Bucket = "creative-drop"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Generation.Workers)
	assert.Equal(t, "creative-drop", loaded.Sync.Bucket)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  output_dir: renders\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "renders", cfg.Paths.OutputDir)
	assert.Equal(t, filepath.Join("input", "assets"), cfg.Paths.AssetsDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Run("paths and workers", func(t *testing.T) {
		t.Setenv("CAMPAIGN_ASSETS_DIR", "/srv/assets")
		t.Setenv("CAMPAIGN_WORKERS", "3")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/srv/assets", cfg.Paths.AssetsDir)
		assert.Equal(t, 3, cfg.Generation.Workers)
	})

	t.Run("non-numeric workers ignored", func(t *testing.T) {
		t.Setenv("CAMPAIGN_WORKERS", "many")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 1, cfg.Generation.Workers)
	})

	t.Run("log level lowercased", func(t *testing.T) {
		t.Setenv("CAMPAIGN_LOG_LEVEL", "DEBUG")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Generation.Workers = 0 }, "Workers failed min=1"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "Level failed oneof"},
		{"confidence above one", func(c *Config) { c.Compliance.MinConfidence = 1.5 }, "MinConfidence failed lte=1"},
		{"empty assets dir", func(c *Config) { c.Paths.AssetsDir = "" }, "AssetsDir failed required"},
		{"bad base url", func(c *Config) { c.Gemini.BaseURL = "not a url" }, "BaseURL failed url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateSync(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.ValidateSync(), "sync.bucket")

	cfg.Sync.Bucket = "b"
	assert.NoError(t, cfg.ValidateSync())
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetGeminiTimeout())
	assert.Equal(t, time.Second, cfg.GetWatcherDebounce())
	assert.Equal(t, 15*time.Minute, cfg.GetRunTimeout())
	assert.Equal(t, filepath.Join("input", "campaigns", "holiday_campaign.yaml"), cfg.CampaignPath())

	cfg.Gemini.Timeout = "garbage"
	assert.Equal(t, 120*time.Second, cfg.GetGeminiTimeout())
}
