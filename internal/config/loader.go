package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

const (
	// ssmParamSuffix marks a variable holding the SSM path of its prefix,
	// e.g. DATABASE_URL_SSM_PARAM=/prod/lawnwatch/database-url.
	ssmParamSuffix = "_SSM_PARAM"
	ssmTimeout     = 30 * time.Second
)

// env abstracts the process environment for tests.
type env struct {
	lookup  func(string) (string, bool)
	set     func(string, string) error
	environ func() []string
}

func osEnv() env {
	return env{lookup: os.LookupEnv, set: os.Setenv, environ: os.Environ}
}

// LoadConfig loads, resolves and validates the configuration. provider may
// be nil when no *_SSM_PARAM variables are set.
func LoadConfig(provider SecretProvider) (*Config, error) {
	_ = godotenv.Load()
	return load(provider, osEnv())
}

func load(provider SecretProvider, e env) (*Config, error) {
	time.Local = time.UTC

	if err := resolveSSMParams(provider, e); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return nil, &ConfigError{Type: ErrValidation, Message: "DB_MIN_CONNS exceeds DB_MAX_CONNS"}
	}
	return &cfg, nil
}

// resolveSSMParams fetches every *_SSM_PARAM path whose target variable is
// still unset and exports the values, so that direct environment values
// always win over SSM.
func resolveSSMParams(provider SecretProvider, e env) error {
	targets := make(map[string]string) // ssm path -> env var
	var paths []string

	for _, kv := range e.environ() {
		key, path, ok := strings.Cut(kv, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := e.lookup(target); set {
			continue
		}
		targets[path] = target
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, targets[p])
		}
		return &ConfigError{Type: ErrSSMResolution, Message: "a SecretProvider is required to resolve " + joinNames(names)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{Type: ErrSSMResolution, Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)), Err: err}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets[path])
			continue
		}
		if err := e.set(targets[path], value); err != nil {
			return &ConfigError{Type: ErrSSMResolution, Message: "failed to export " + targets[path], Err: err}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Type: ErrSSMResolution, Message: "SSM parameters not found for " + joinNames(missing)}
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
