package config

import (
	"context"
	"os"
)

// EnvVarProvider treats each key as an environment variable name, so in a
// local setup DATABASE_URL_SSM_PARAM=LOCAL_DATABASE_URL copies the value of
// LOCAL_DATABASE_URL into DATABASE_URL without AWS.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out, nil
}
