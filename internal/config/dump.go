package config

import (
	"gopkg.in/yaml.v3"
)

// Marshal renders the effective configuration as YAML under the `netscope:` root key.
func (cfg *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(map[string]*Config{rootKey: cfg})
}
