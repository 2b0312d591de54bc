package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultDotEnvFile = ".env"

// loadFiles applies the optional .env file and then the optional YAML
// defaults file. Neither overrides a variable that is already set.
func loadFiles() error {
	dotenv := getEnvStr(EnvDotEnvFile, defaultDotEnvFile)
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", dotenv, err)
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := LoadYAMLDefaults(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadYAMLDefaults reads a flat map of ENV_NAME: value pairs and sets every
// key that is not yet present in the environment.
func LoadYAMLDefaults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for _, key := range sortedKeys(values) {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(values[key])); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
