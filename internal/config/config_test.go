package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-gap-wizard/internal/llm"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 9090,
		"flow": "compact",
		"exit_policy": "stay",
		"auto_advance_delay": "250ms",
		"storage_backend": "sqlite",
		"sqlite_path": "/tmp/wizard.db",
		"s3": {"endpoint": "localhost:9000", "bucket": "uploads"},
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "compact", cfg.Flow)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, "uploads", cfg.S3.Bucket)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 250*time.Millisecond, cfg.AutoAdvance())
	assert.Equal(t, wizard.CompactFlow.Name, cfg.WizardFlow().Name)
	assert.Equal(t, wizard.StayOnFirst, cfg.WizardExitPolicy())
}

func TestLoadConfig_ValidTOML(t *testing.T) {
	content := `
port = 7070
flow = "standard"
storage_backend = "postgres"
database_url = "postgres://localhost/wizard"
roles_url = "http://roles.internal"

[s3]
endpoint = "minio:9000"
bucket = "resumes"
use_ssl = true
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, "http://roles.internal", cfg.RolesURL)
	assert.Equal(t, "minio:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.UseSSL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "3000",
		"WIZARD_FLOW":     "compact",
		"GEMINI_API_KEY":  "key",
		"GEMINI_MODEL":    "gemini-2.5-pro",
		"S3_USE_SSL":      "true",
		"STORAGE_BACKEND": " ",
	}
	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "compact", cfg.Flow)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	assert.True(t, cfg.S3.UseSSL)
	assert.Equal(t, StorageMemory, cfg.StorageBackend, "blank values are ignored")

	env["PORT"] = "eighty"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"unknown flow", func(c *Config) { c.Flow = "express" }, "unknown flow"},
		{"unknown exit policy", func(c *Config) { c.ExitPolicy = "reload" }, "exit policy"},
		{"bad delay", func(c *Config) { c.AutoAdvanceDelay = "soon" }, "auto_advance_delay"},
		{"postgres without url", func(c *Config) { c.StorageBackend = StoragePostgres }, "database_url"},
		{"unknown storage", func(c *Config) { c.StorageBackend = "redis" }, "storage backend"},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = BlobS3 }, "s3.bucket"},
		{"negative cache", func(c *Config) { c.RoleCacheSize = -1 }, "role_cache_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Port:     9000,
		RolesURL: "http://roles",
	}

	merged := partial.MergeWithDefaults(Defaults())

	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "http://roles", merged.RolesURL)
	assert.Equal(t, wizard.StandardFlow.Name, merged.Flow)
	assert.Equal(t, StorageMemory, merged.StorageBackend)
	assert.Equal(t, 256, merged.RoleCacheSize)
	assert.Equal(t, wizard.DefaultAutoAdvanceDelay, merged.AutoAdvance())
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Flow: "compact"}
	merged := cfg.MergeWithDefaults(Config{})
	assert.Equal(t, "compact", merged.Flow)
	assert.Equal(t, 0, merged.Port)
}

func TestLLMConfig(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "gemini-2.5-flash", cfg.LLMConfig().Model(llm.TierStandard))

	cfg.GeminiModel = "gemini-2.5-pro"
	model := cfg.LLMConfig()
	assert.Equal(t, "gemini-2.5-pro", model.Model(llm.TierStandard))
	assert.Equal(t, "gemini-2.5-flash-lite", model.Model(llm.TierFast))
}
