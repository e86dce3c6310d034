package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables honored for compatibility with the original
// documentation make script.
const (
	EnvSphinxBuild = "SPHINXBUILD"
	EnvSphinxOpts  = "SPHINXOPTS"
	EnvExtraOpts   = "O"
)

// loadEnvFile loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process variables are not overwritten.
func loadEnvFile() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("failed to parse env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("loaded environment variables", "path", envPath)
		return
	}
}

// applyEnvOverrides applies SPHINXBUILD/SPHINXOPTS/O on top of the loaded
// configuration, preserving the original script's environment contract.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSphinxBuild); v != "" {
		cfg.Builder.Command = v
	}
	if v := os.Getenv(EnvSphinxOpts); v != "" {
		cfg.Builder.Opts = append(cfg.Builder.Opts, splitOpts(v)...)
	}
	if v := os.Getenv(EnvExtraOpts); v != "" {
		cfg.Builder.Opts = append(cfg.Builder.Opts, splitOpts(v)...)
	}
}

// splitOpts splits a whitespace-separated option string. Quoting is not
// supported; the original batch script forwarded these verbatim as well.
func splitOpts(s string) []string {
	return strings.Fields(s)
}
