package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVariable names the environment variable that overrides the .env location.
const EnvFileVariable = "YTARCHIVER_ENV_FILE"

func envFilePath(configPath string) string {
	if value := strings.TrimSpace(os.Getenv(EnvFileVariable)); value != "" {
		return value
	}
	if configPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(configPath), ".env")
}

// applyEnv layers secrets from an optional .env file and the process
// environment over the decoded TOML. The process environment wins.
func (c *Config) applyEnv(path string) error {
	fileValues := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("read env file %q: %w", path, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		if value, ok := fileValues[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		return "", false
	}

	if value, ok := lookup("YTARCHIVER_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	if value, ok := lookup("YTARCHIVER_REDIS_ADDR"); ok {
		c.Events.RedisAddr = value
	}
	if value, ok := lookup("YTARCHIVER_REDIS_PASSWORD"); ok {
		c.Events.RedisPassword = value
	}
	if value, ok := lookup("YTARCHIVER_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	return nil
}
