// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/kele/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete kele configuration.
type Config struct {
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`
	Relay  RelayConfig  `toml:"relay" json:"relay"`
	UI     UIConfig     `toml:"ui" json:"ui"`
	Log    LogConfig    `toml:"log" json:"log"`
}

// OllamaConfig contains the model server settings.
type OllamaConfig struct {
	URL          string        `toml:"url" json:"url"`
	Model        string        `toml:"model" json:"model"`
	SystemPrompt string        `toml:"system_prompt" json:"system_prompt"`
	Timeout      time.Duration `toml:"timeout" json:"timeout"` // non-streaming calls and health checks
	Stream       bool          `toml:"stream" json:"stream"`

	// Model parameters sent with each request; zero leaves the model default.
	Temperature float64 `toml:"temperature" json:"temperature"`
	TopP        float64 `toml:"top_p" json:"top_p"`
	NumCtx      int     `toml:"num_ctx" json:"num_ctx"`
	NumPredict  int     `toml:"num_predict" json:"num_predict"`

	// CannedReply, when set, answers every message with this text and never
	// contacts the server.
	CannedReply string `toml:"canned_reply" json:"canned_reply"`
}

// RelayConfig contains request relay settings.
type RelayConfig struct {
	Workers        int           `toml:"workers" json:"workers"`
	QueueDepth     int           `toml:"queue_depth" json:"queue_depth"`
	RequestTimeout time.Duration `toml:"request_timeout" json:"request_timeout"` // 0 = none
	SubmitRate     float64       `toml:"submit_rate" json:"submit_rate"`         // per second, 0 = unlimited
	SubmitBurst    int           `toml:"submit_burst" json:"submit_burst"`
}

// UIConfig contains chat screen settings.
type UIConfig struct {
	Greeting    string `toml:"greeting" json:"greeting"`
	Placeholder string `toml:"placeholder" json:"placeholder"`
	Markdown    bool   `toml:"markdown" json:"markdown"`
	Mouse       bool   `toml:"mouse" json:"mouse"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	File       string `toml:"file" json:"file"` // empty = <config dir>/kele.log
	Level      string `toml:"level" json:"level"`
	Format     string `toml:"format" json:"format"` // text or json
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:     "http://127.0.0.1:11434",
			Model:   "deepseek-r1",
			Timeout: 2 * time.Minute,
			Stream:  true,
		},
		Relay: RelayConfig{
			Workers:        1,
			QueueDepth:     16,
			RequestTimeout: 5 * time.Minute,
			SubmitRate:     0,
			SubmitBurst:    4,
		},
		UI: UIConfig{
			Greeting:    "Hey, how can I help?",
			Placeholder: "Message Kele",
			Markdown:    true,
			Mouse:       true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the kele configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".kele"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path, or the default path when path is
// empty. A missing file is not an error. Environment overrides are applied
// after the file, then defaults fill anything left empty, then the result is
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = defaults.Ollama.Model
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = defaults.Ollama.Timeout
	}

	if cfg.Relay.Workers == 0 {
		cfg.Relay.Workers = defaults.Relay.Workers
	}
	if cfg.Relay.QueueDepth == 0 {
		cfg.Relay.QueueDepth = defaults.Relay.QueueDepth
	}
	if cfg.Relay.SubmitBurst == 0 {
		cfg.Relay.SubmitBurst = defaults.Relay.SubmitBurst
	}

	if cfg.UI.Greeting == "" {
		cfg.UI.Greeting = defaults.UI.Greeting
	}
	if cfg.UI.Placeholder == "" {
		cfg.UI.Placeholder = defaults.UI.Placeholder
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to path atomically, creating its
// directory.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# kele configuration file\n")
	buf.WriteString("# Durations use Go syntax, e.g. \"90s\" or \"5m\".\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o600, 0o755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem found, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("ollama.url", "invalid URL '%s', must be http(s)://host[:port]", c.Ollama.URL)
	}
	if strings.TrimSpace(c.Ollama.Model) == "" && c.Ollama.CannedReply == "" {
		add("ollama.model", "must not be empty")
	}
	if c.Ollama.Timeout < 0 {
		add("ollama.timeout", "must not be negative")
	}
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 2 {
		add("ollama.temperature", "must be between 0 and 2, got %g", c.Ollama.Temperature)
	}
	if c.Ollama.TopP < 0 || c.Ollama.TopP > 1 {
		add("ollama.top_p", "must be between 0 and 1, got %g", c.Ollama.TopP)
	}
	if c.Ollama.NumCtx < 0 {
		add("ollama.num_ctx", "must not be negative")
	}
	if c.Ollama.NumPredict < -1 {
		add("ollama.num_predict", "must be -1 (unlimited) or more, got %d", c.Ollama.NumPredict)
	}

	if c.Relay.Workers < 1 || c.Relay.Workers > 64 {
		add("relay.workers", "must be between 1 and 64, got %d", c.Relay.Workers)
	}
	if c.Relay.QueueDepth < 1 || c.Relay.QueueDepth > 1024 {
		add("relay.queue_depth", "must be between 1 and 1024, got %d", c.Relay.QueueDepth)
	}
	if c.Relay.RequestTimeout < 0 {
		add("relay.request_timeout", "must not be negative")
	}
	if c.Relay.SubmitRate < 0 {
		add("relay.submit_rate", "must not be negative")
	}
	if c.Relay.SubmitBurst < 0 {
		add("relay.submit_burst", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		add("log.max_size_mb", "size and backups must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - KELE_MODEL: overrides ollama.model
//   - KELE_OLLAMA_URL: overrides ollama.url
//   - KELE_SYSTEM_PROMPT: overrides ollama.system_prompt
//   - KELE_CANNED_REPLY: overrides ollama.canned_reply
//   - KELE_WORKERS: overrides relay.workers
//   - KELE_QUEUE_DEPTH: overrides relay.queue_depth
//   - KELE_REQUEST_TIMEOUT: overrides relay.request_timeout
//   - KELE_LOG_LEVEL: overrides log.level
//   - KELE_LOG_FILE: overrides log.file
//
// Unparseable numeric values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KELE_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("KELE_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("KELE_SYSTEM_PROMPT"); v != "" {
		c.Ollama.SystemPrompt = v
	}
	if v := os.Getenv("KELE_CANNED_REPLY"); v != "" {
		c.Ollama.CannedReply = v
	}
	if v := os.Getenv("KELE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Relay.Workers = n
		}
	}
	if v := os.Getenv("KELE_QUEUE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Relay.QueueDepth = n
		}
	}
	if v := os.Getenv("KELE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Relay.RequestTimeout = d
		}
	}
	if v := os.Getenv("KELE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KELE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.model").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "relay.workers").
// String values are converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue sets a reflect.Value from an arbitrary value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		if field.Type() == durationType {
			d, err := time.ParseDuration(strVal)
			if err != nil {
				return fmt.Errorf("invalid duration value: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %w", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON representation for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
