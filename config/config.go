// Package config loads the registry configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`

	Persistence PersistenceConfig `mapstructure:"persistence"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Vector      VectorConfig      `mapstructure:"vector"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// PersistenceConfig selects the content store backend.
type PersistenceConfig struct {
	Type       string   `mapstructure:"type"` // "s3", "filesystem" or "memory"
	StorageDir string   `mapstructure:"storage_dir"`
	S3         S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyID     string `mapstructure:"key_id"`
	AccessKey string `mapstructure:"access_key"`
	Timeout   string `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// VectorConfig configures the Pinecone-backed search index. When Enabled is
// false the registry runs with the in-memory index.
type VectorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Index     string `mapstructure:"index"`
	Namespace string `mapstructure:"namespace"`
	BaseURL   string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type MaintenanceConfig struct {
	DraftMaxAgeHours int `mapstructure:"draft_max_age_hours"`
	ReindexPageSize  int `mapstructure:"reindex_page_size"`
}

var Cfg = &AppConfig{}

// Load populates Cfg from an optional config file plus REGISTRY_* environment
// variables. A missing config file is not an error; env vars alone are enough.
func Load(configFile string) error {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("persistence.type", "filesystem")
	v.SetDefault("persistence.storage_dir", "./registry-data")
	v.SetDefault("persistence.s3.timeout", "30s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("vector.enabled", false)
	v.SetDefault("vector.base_url", "https://api.pinecone.io")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com")
	v.SetDefault("maintenance.draft_max_age_hours", 24)
	v.SetDefault("maintenance.reindex_page_size", 100)

	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(Cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}
