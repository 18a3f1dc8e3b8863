package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Pivot Configuration

storage:
  driver: sqlite            # sqlite or postgres

sqlite:
  path: .pivot/pivot.db

# postgres:
#   dsn: host=localhost user=postgres password=postgres dbname=pivot port=5432 sslmode=disable
#   (or set PIVOT_POSTGRES_DSN env var)

cache:
  driver: none              # none, memory, redis or memcached
                            # memory needs events.redis_channel when
                            # several processes share the store
  ttl: 10m
  prefix: "pivot:"

# redis:
#   addr: localhost:6379
#   password: ""            # or set PIVOT_REDIS_PASSWORD env var
#   db: 0

# memcached:
#   addr: localhost:11211

# events:
#   redis_channel: pivot.changes
#   log: true               # log every change event at info

server:
  addr: ":8080"

tracing:
  enabled: false
  endpoint: localhost:4318
  service_name: pivot

log:
  level: info               # debug, info, warn, error
  format: text              # text or json
`

// WriteDefault creates the .pivot directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
