package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the configuration file, applies defaults, environment file and
// environment overrides, and validates the result. A missing file is not an
// error: the defaults alone describe a conventional Sphinx project layout.
func Load(path string) (*Config, error) {
	loadEnvFile()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// starterConfig is the file written by the init command.
const starterConfig = `# docpages configuration
project:
  name: my-project

builder:
  command: sphinx-build
  source_dir: source
  build_dir: build
  default_target: html
  # opts: ["-W", "--keep-going"]

publish:
  remote: origin
  branch: gh-pages
  stable_branch: master
  dev_branch: develop

preview:
  port: 8000

logging:
  level: info
  format: text
`

// Init writes a starter configuration file. Refuses to overwrite an existing
// file unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
