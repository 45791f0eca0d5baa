package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/subosito/gotenv"
)

const (
	DefaultEnvFilename      = ".env"
	DefaultTemplateFilename = ".env.template"
)

// ConfigError is returned when neither the env file nor its template can be
// turned into a RuntimeConfig.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return "config " + e.Path + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RuntimeConfig is the key/value configuration of one run. It is loaded once
// and never mutated; accessors hand out copies.
type RuntimeConfig struct {
	values map[string]string
}

func New(values map[string]string) RuntimeConfig {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return RuntimeConfig{values: cp}
}

func (c RuntimeConfig) Get(key string) string {
	return c.values[key]
}

func (c RuntimeConfig) Lookup(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetOr returns the value for key, or def when the key is missing or blank.
func (c RuntimeConfig) GetOr(key, def string) string {
	if v := strings.TrimSpace(c.values[key]); v != "" {
		return v
	}
	return def
}

// List splits a whitespace or comma separated value.
func (c RuntimeConfig) List(key string) []string {
	fields := strings.FieldsFunc(c.values[key], func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (c RuntimeConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c RuntimeConfig) Map() map[string]string {
	cp := make(map[string]string, len(c.values))
	for k, v := range c.values {
		cp[k] = v
	}
	return cp
}

// Expand substitutes ${VAR} and $VAR references with config values.
func (c RuntimeConfig) Expand(s string) string {
	return os.Expand(s, c.Get)
}

func DefaultEnvPath(projectDir string) string {
	return filepath.Join(projectDir, DefaultEnvFilename)
}

func DefaultTemplatePath(projectDir string) string {
	return filepath.Join(projectDir, DefaultTemplateFilename)
}

func LoadFromFile(path string) (RuntimeConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, &ConfigError{Path: path, Err: errors.Wrap(err, "read env file")}
	}
	env, err := gotenv.StrictParse(bytes.NewReader(b))
	if err != nil {
		return RuntimeConfig{}, &ConfigError{Path: path, Err: errors.Wrap(err, "parse env file")}
	}
	return New(env), nil
}

// Ensure loads envPath, creating it from templatePath first when it does not
// exist yet. The created file is a byte-for-byte copy of the template.
func Ensure(envPath, templatePath string) (RuntimeConfig, bool, error) {
	_, err := os.Stat(envPath)
	if err == nil {
		cfg, err := LoadFromFile(envPath)
		return cfg, false, err
	}
	if !os.IsNotExist(err) {
		return RuntimeConfig{}, false, &ConfigError{Path: envPath, Err: errors.Wrap(err, "stat env file")}
	}

	if err := CreateFromTemplate(envPath, templatePath); err != nil {
		return RuntimeConfig{}, false, err
	}
	cfg, err := LoadFromFile(envPath)
	return cfg, true, err
}

func CreateFromTemplate(envPath, templatePath string) error {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return &ConfigError{Path: templatePath, Err: errors.Wrap(err, "read template")}
	}
	if err := os.MkdirAll(filepath.Dir(envPath), 0o755); err != nil {
		return &ConfigError{Path: envPath, Err: errors.Wrap(err, "mkdir env dir")}
	}
	// O_EXCL: never clobber an env file that appeared in the meantime.
	f, err := os.OpenFile(envPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return &ConfigError{Path: envPath, Err: errors.Wrap(err, "create env file")}
	}
	if _, err := f.Write(tmpl); err != nil {
		_ = f.Close()
		return &ConfigError{Path: envPath, Err: errors.Wrap(err, "write env file")}
	}
	if err := f.Close(); err != nil {
		return &ConfigError{Path: envPath, Err: errors.Wrap(err, "close env file")}
	}
	return nil
}
