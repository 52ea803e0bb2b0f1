// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads pms settings through viper. Sources, lowest
// precedence first: built-in defaults, .secrets/ credentials, the config
// file, then the environment (PMS_API_EMAIL and so on, including variables
// loaded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/pms/internal/secrets"
	"github.com/pdiddy/pms/pkg/types"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "PMS"

// ErrUnknownKey is returned by Get and Set for keys pms does not define.
var ErrUnknownKey = errors.New("unknown configuration key")

// Options locates the configuration sources.
type Options struct {
	// File is an explicit config file. It need not exist yet; Set creates it.
	File string

	// Home replaces the user's home directory when computing default paths.
	Home string

	// EnvFile is a dotenv file loaded into the process environment when it
	// exists. Variables already set are not overridden.
	EnvFile string

	// Secrets supply the API key and email when nothing else does.
	Secrets secrets.Set
}

// Manager holds the merged settings and the path that Set writes to.
type Manager struct {
	v        *viper.Viper
	path     string
	home     string
	defaults map[string]any
}

// DefaultPath returns ~/.config/pms/config.yaml under home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "pms", "config.yaml")
}

// Load merges all sources.
func Load(opts Options) (*Manager, error) {
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		home = h
	}

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return nil, fmt.Errorf("loading %s: %w", opts.EnvFile, err)
			}
		}
	}

	v := viper.New()
	defs := defaults(home)
	for k, val := range defs {
		v.SetDefault(k, val)
	}
	if key := opts.Secrets.Get(secrets.KeyAPIKey); key != "" {
		v.SetDefault("api.api_key", key)
	}
	if email := opts.Secrets.Get(secrets.KeyEmail); email != "" {
		v.SetDefault("api.email", email)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.File
	if path == "" {
		path = DefaultPath(home)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return &Manager{v: v, path: path, home: home, defaults: defs}, nil
}

// defaults returns the built-in settings keyed by section.key. Their Go
// types decide how Set parses new values.
func defaults(home string) map[string]any {
	dataHome := filepath.Join(home, ".local", "share", "pms")
	return map[string]any{
		"api.base_url":                     "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		"api.email":                        "",
		"api.tool":                         "pms",
		"api.api_key":                      "",
		"api.max_retries":                  3,
		"api.retry_delay":                  5 * time.Second,
		"api.requests_per_second":          3.0,
		"api.requests_per_second_with_key": 10.0,
		"api.response_mode":                string(types.ResponseJSON),
		"api.timeout":                      30 * time.Second,
		"api.user_agent":                   "pms/0.1",
		"storage.database_path":            filepath.Join(dataHome, "pms.db"),
		"storage.data_dir":                 filepath.Join(dataHome, "data"),
		"logging.level":                    "info",
		"logging.file":                     filepath.Join(dataHome, "pms.log"),
	}
}

// Path is the config file Set writes to.
func (m *Manager) Path() string {
	return m.path
}

// Config decodes and validates the merged settings.
func (m *Manager) Config() (types.Config, error) {
	var cfg types.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(secondsHook),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := m.v.Unmarshal(&cfg, hook); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Storage.DatabasePath = m.expand(cfg.Storage.DatabasePath)
	cfg.Storage.DataDir = m.expand(cfg.Storage.DataDir)
	cfg.Logging.File = m.expand(cfg.Logging.File)

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func Validate(cfg types.Config) error {
	var errs []error
	if !cfg.API.ResponseMode.Valid() {
		errs = append(errs, fmt.Errorf("api.response_mode %q: want json or xml", cfg.API.ResponseMode))
	}
	if cfg.API.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("api.max_retries must be at least 1"))
	}
	if cfg.API.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("api.retry_delay must not be negative"))
	}
	if cfg.API.RequestsPerSecond < 0 || cfg.API.RequestsPerSecondWithKey < 0 {
		errs = append(errs, fmt.Errorf("api request rates must not be negative"))
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.database_path and storage.data_dir are required"))
	}
	return errors.Join(errs...)
}

// Keys returns every defined key as section.key, sorted.
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.defaults))
	for k := range m.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Manager) known(key string) bool {
	_, ok := m.defaults[key]
	return ok
}

// Get returns the effective value of section.key.
func (m *Manager) Get(section, key string) (any, error) {
	full := strings.ToLower(section + "." + key)
	if !m.known(full) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, full)
	}
	return m.v.Get(full), nil
}

// List returns the effective settings grouped by section.
func (m *Manager) List() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, full := range m.Keys() {
		section, key, _ := strings.Cut(full, ".")
		if out[section] == nil {
			out[section] = make(map[string]any)
		}
		out[section][key] = m.v.Get(full)
	}
	return out
}

// Set parses value according to the key's default type, applies it, and
// saves it to the config file. Only values present in the file, plus this
// one, are written; defaults, secrets, and environment values are not.
func (m *Manager) Set(section, key, value string) error {
	full := strings.ToLower(section + "." + key)
	if !m.known(full) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, full)
	}

	parsed, err := parseValue(m.defaults[full], value)
	if err != nil {
		return fmt.Errorf("%s: %w", full, err)
	}

	file := viper.New()
	file.SetConfigFile(m.path)
	file.SetConfigType("yaml")
	if _, err := os.Stat(m.path); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", m.path, err)
		}
	}
	file.Set(full, parsed)

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := file.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("writing config %s: %w", m.path, err)
	}

	m.v.Set(full, parsed)
	return nil
}

// parseValue converts s to the type of the key's default.
func parseValue(def any, s string) (any, error) {
	switch def.(type) {
	case int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("want an integer, got %q", s)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("want a number, got %q", s)
		}
		return f, nil
	case time.Duration:
		d, err := parseDuration(s)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return s, nil
	}
}

// parseDuration accepts a Go duration ("1500ms") or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("want a duration such as 5s or a number of seconds, got %q", s)
	}
	return d, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsHook reads bare numbers as seconds for duration fields, so a
// config file may say retry_delay: 5.
func secondsHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32:
		if from == durationType {
			return data, nil
		}
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float64, reflect.Float32:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	case reflect.String:
		return parseDuration(reflect.ValueOf(data).String())
	}
	return data, nil
}

func (m *Manager) expand(path string) string {
	if path == "~" {
		return m.home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(m.home, path[2:])
	}
	return path
}
