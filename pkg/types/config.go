// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for the E-utilities client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pms/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ResponseMode selects the esearch response format and with it the parser
// used for the ID list.
type ResponseMode string

const (
	ResponseJSON ResponseMode = "json"
	ResponseXML  ResponseMode = "xml"
)

// Valid reports whether m is a supported response mode.
func (m ResponseMode) Valid() bool {
	return m == ResponseJSON || m == ResponseXML
}

// APIConfig holds settings for the PubMed E-utilities client.
type APIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the E-utilities root (default
	// https://eutils.ncbi.nlm.nih.gov/entrez/eutils).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Email identifies the caller to NCBI. NCBI requires it.
	Email string `json:"email" yaml:"email" mapstructure:"email"`

	// Tool is the registered tool name sent with each request (default "pms").
	Tool string `json:"tool" yaml:"tool" mapstructure:"tool"`

	// APIKey is an optional NCBI API key that permits a higher request rate.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retries after an HTTP 429 (default 3).
	// It must be at least 1; the client treats zero as unset.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the base backoff delay, doubled on each retry (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	// RequestsPerSecond is the request rate without an API key (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// RequestsPerSecondWithKey is the request rate when APIKey is set (default 10).
	RequestsPerSecondWithKey float64 `json:"requests_per_second_with_key" yaml:"requests_per_second_with_key" mapstructure:"requests_per_second_with_key"`

	// ResponseMode selects the esearch response format (default json).
	ResponseMode ResponseMode `json:"response_mode" yaml:"response_mode" mapstructure:"response_mode"`
}

// EffectiveRate returns the request rate allowed for this configuration.
func (c APIConfig) EffectiveRate() float64 {
	if c.APIKey != "" && c.RequestsPerSecondWithKey > 0 {
		return c.RequestsPerSecondWithKey
	}
	return c.RequestsPerSecond
}

// StorageConfig locates the tracking database and the record directory.
type StorageConfig struct {
	// DatabasePath is the SQLite tracking database file.
	DatabasePath string `json:"database_path" yaml:"database_path" mapstructure:"database_path"`

	// DataDir holds one subdirectory per project (articles.jsonl, project.yaml, queries.yaml).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File is an optional log file that receives JSON-encoded entries.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// Config groups all settings for one pms invocation.
type Config struct {
	API     APIConfig     `json:"api" yaml:"api" mapstructure:"api"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}
