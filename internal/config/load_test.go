package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBuilderCommand, cfg.Builder.Command)
	assert.Equal(t, DefaultSourceDir, cfg.Builder.SourceDir)
	assert.Equal(t, DefaultBuildDir, cfg.Builder.BuildDir)
	assert.Equal(t, DefaultPublishBranch, cfg.Publish.Branch)
	assert.Equal(t, DefaultStableBranch, cfg.Publish.StableBranch)
	assert.Equal(t, DefaultDevBranch, cfg.Publish.DevBranch)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
builder:
  command: sphinx-build-custom
  source_dir: docs
  opts: ["-W"]
publish:
  branch: pages
  stable_branch: main
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sphinx-build-custom", cfg.Builder.Command)
	assert.Equal(t, "docs", cfg.Builder.SourceDir)
	assert.Equal(t, []string{"-W"}, cfg.Builder.Opts)
	assert.Equal(t, "pages", cfg.Publish.Branch)
	assert.Equal(t, "main", cfg.Publish.StableBranch)
	// Unset fields still defaulted.
	assert.Equal(t, DefaultBuildDir, cfg.Builder.BuildDir)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("builder: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSphinxBuild, "/opt/sphinx/bin/sphinx-build")
	t.Setenv(EnvSphinxOpts, "-W --keep-going")
	t.Setenv(EnvExtraOpts, "-j4")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/sphinx/bin/sphinx-build", cfg.Builder.Command)
	assert.Equal(t, []string{"-W", "--keep-going", "-j4"}, cfg.Builder.Opts)
}

func TestSourceBranchSelection(t *testing.T) {
	p := PublishConfig{StableBranch: "master", DevBranch: "develop"}
	assert.Equal(t, "master", p.SourceBranch(ChannelStable))
	assert.Equal(t, "develop", p.SourceBranch(ChannelDev))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpages.yaml")
	require.NoError(t, Init(path, false))

	// Written file must load cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-project", cfg.Project.Name)

	// Second init without force refuses.
	assert.Error(t, Init(path, false))
	assert.NoError(t, Init(path, true))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"same source and build dir", func(c *Config) { c.Builder.BuildDir = c.Builder.SourceDir }, true},
		{"publish branch equals stable", func(c *Config) { c.Publish.Branch = c.Publish.StableBranch }, true},
		{"bad timeout", func(c *Config) { c.Builder.Timeout = "soon" }, true},
		{"good timeout", func(c *Config) { c.Builder.Timeout = "5m" }, false},
		{"bad port", func(c *Config) { c.Preview.Port = 70000 }, true},
		{"interval too small", func(c *Config) { c.Daemon.BuildInterval = "5s" }, true},
		{"bad publish channel", func(c *Config) { c.Daemon.PublishChannel = "nightly" }, true},
		{"events without url", func(c *Config) { c.Daemon.Events.Enabled = true }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat(""))
}
