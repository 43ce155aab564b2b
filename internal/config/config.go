// Package config provides configuration loading and validation for the wizard service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonathan/skill-gap-wizard/internal/blob"
	"github.com/jonathan/skill-gap-wizard/internal/llm"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

// Storage backends for per-browser state.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Blob backends for raw uploaded files.
const (
	BlobMemory = "memory"
	BlobS3     = "s3"
)

// Config is the service configuration. It can be loaded from a JSON or TOML
// file; environment variables override file values.
type Config struct {
	Port int `json:"port,omitempty" toml:"port,omitempty"`

	// Wizard behavior
	Flow             string `json:"flow,omitempty" toml:"flow,omitempty"`                             // "standard" or "compact"
	ExitPolicy       string `json:"exit_policy,omitempty" toml:"exit_policy,omitempty"`               // "exit" or "stay"
	AutoAdvanceDelay string `json:"auto_advance_delay,omitempty" toml:"auto_advance_delay,omitempty"` // Go duration, e.g. "500ms"

	// Storage
	StorageBackend string        `json:"storage_backend,omitempty" toml:"storage_backend,omitempty"`
	DatabaseURL    string        `json:"database_url,omitempty" toml:"database_url,omitempty"`
	SQLitePath     string        `json:"sqlite_path,omitempty" toml:"sqlite_path,omitempty"`
	BlobBackend    string        `json:"blob_backend,omitempty" toml:"blob_backend,omitempty"`
	S3             blob.S3Config `json:"s3,omitempty" toml:"s3,omitempty"`

	// External services
	RolesURL        string `json:"roles_url,omitempty" toml:"roles_url,omitempty"`
	ExtractionURL   string `json:"extraction_url,omitempty" toml:"extraction_url,omitempty"`
	RequirementsURL string `json:"requirements_url,omitempty" toml:"requirements_url,omitempty"`
	GeminiAPIKey    string `json:"gemini_api_key,omitempty" toml:"gemini_api_key,omitempty"`
	GeminiModel     string `json:"gemini_model,omitempty" toml:"gemini_model,omitempty"` // overrides the standard tier model
	RoleCacheSize   int    `json:"role_cache_size,omitempty" toml:"role_cache_size,omitempty"`

	Verbose bool `json:"verbose,omitempty" toml:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:             8080,
		Flow:             wizard.StandardFlow.Name,
		ExitPolicy:       string(wizard.ExitToHost),
		AutoAdvanceDelay: wizard.DefaultAutoAdvanceDelay.String(),
		StorageBackend:   StorageMemory,
		SQLitePath:       "skillgap.db",
		BlobBackend:      BlobMemory,
		RoleCacheSize:    256,
	}
}

// LoadConfig loads configuration from a JSON file, or TOML when the file
// extension is .toml.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	strs := map[string]*string{
		"WIZARD_FLOW":        &c.Flow,
		"WIZARD_EXIT_POLICY": &c.ExitPolicy,
		"AUTO_ADVANCE_DELAY": &c.AutoAdvanceDelay,
		"STORAGE_BACKEND":    &c.StorageBackend,
		"DATABASE_URL":       &c.DatabaseURL,
		"SQLITE_PATH":        &c.SQLitePath,
		"BLOB_BACKEND":       &c.BlobBackend,
		"S3_ENDPOINT":        &c.S3.Endpoint,
		"S3_REGION":          &c.S3.Region,
		"S3_ACCESS_KEY":      &c.S3.AccessKey,
		"S3_SECRET_KEY":      &c.S3.SecretKey,
		"S3_BUCKET":          &c.S3.Bucket,
		"ROLES_URL":          &c.RolesURL,
		"EXTRACTION_URL":     &c.ExtractionURL,
		"REQUIREMENTS_URL":   &c.RequirementsURL,
		"GEMINI_API_KEY":     &c.GeminiAPIKey,
		"GEMINI_MODEL":       &c.GeminiModel,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: invalid PORT %q", v)
		}
		c.Port = port
	}
	if v := strings.TrimSpace(getenv("S3_USE_SSL")); v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: invalid S3_USE_SSL %q", v)
		}
		c.S3.UseSSL = useSSL
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if _, err := wizard.FlowByName(c.Flow); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := wizard.ParseExitPolicy(c.ExitPolicy); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.AutoAdvanceDelay != "" {
		d, err := time.ParseDuration(c.AutoAdvanceDelay)
		if err != nil || d < 0 {
			return fmt.Errorf("config error: 'auto_advance_delay' must be a non-negative duration")
		}
	}
	if c.RoleCacheSize < 0 {
		return fmt.Errorf("config error: 'role_cache_size' must be non-negative")
	}

	switch c.StorageBackend {
	case "", StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres storage backend")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config error: 'sqlite_path' is required for the sqlite storage backend")
		}
	default:
		return fmt.Errorf("config error: unknown storage backend %q", c.StorageBackend)
	}

	switch c.BlobBackend {
	case "", BlobMemory:
	case BlobS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("config error: 's3.endpoint' and 's3.bucket' are required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("config error: unknown blob backend %q", c.BlobBackend)
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct {
		dst *string
		def string
	}{
		{&result.Flow, defaults.Flow},
		{&result.ExitPolicy, defaults.ExitPolicy},
		{&result.AutoAdvanceDelay, defaults.AutoAdvanceDelay},
		{&result.StorageBackend, defaults.StorageBackend},
		{&result.DatabaseURL, defaults.DatabaseURL},
		{&result.SQLitePath, defaults.SQLitePath},
		{&result.BlobBackend, defaults.BlobBackend},
		{&result.RolesURL, defaults.RolesURL},
		{&result.ExtractionURL, defaults.ExtractionURL},
		{&result.RequirementsURL, defaults.RequirementsURL},
		{&result.GeminiAPIKey, defaults.GeminiAPIKey},
		{&result.GeminiModel, defaults.GeminiModel},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = s.def
		}
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RoleCacheSize == 0 {
		result.RoleCacheSize = defaults.RoleCacheSize
	}
	if result.S3 == (blob.S3Config{}) {
		result.S3 = defaults.S3
	}

	// Bools cannot distinguish unset from false; flags win.
	return result
}

// WizardFlow returns the configured flow.
func (c *Config) WizardFlow() wizard.Flow {
	flow, err := wizard.FlowByName(c.Flow)
	if err != nil {
		return wizard.StandardFlow
	}
	return flow
}

// WizardExitPolicy returns the configured exit policy.
func (c *Config) WizardExitPolicy() wizard.ExitPolicy {
	policy, err := wizard.ParseExitPolicy(c.ExitPolicy)
	if err != nil {
		return wizard.ExitToHost
	}
	return policy
}

// AutoAdvance returns the configured auto-advance delay.
func (c *Config) AutoAdvance() time.Duration {
	d, err := time.ParseDuration(c.AutoAdvanceDelay)
	if err != nil || d <= 0 {
		return wizard.DefaultAutoAdvanceDelay
	}
	return d
}

// LLMConfig returns the model configuration for the requirements generator.
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if c.GeminiModel == "" {
		return cfg
	}
	return cfg.WithModel(llm.TierStandard, c.GeminiModel)
}
