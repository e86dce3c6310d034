package config

// Config is the root configuration for docpages, loaded from YAML with
// environment overrides applied afterwards (see applyEnvOverrides).
type Config struct {
	Project ProjectConfig `yaml:"project,omitempty"`
	Builder BuilderConfig `yaml:"builder,omitempty"`
	Publish PublishConfig `yaml:"publish,omitempty"`
	Preview PreviewConfig `yaml:"preview,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ProjectConfig identifies the documentation project.
type ProjectConfig struct {
	Name string `yaml:"name,omitempty"`
	// Root is the directory containing the source and build directories.
	// Defaults to the current working directory.
	Root string `yaml:"root,omitempty"`
}

// BuilderConfig holds the external documentation builder invocation knobs.
// The historical environment contract is preserved: SPHINXBUILD overrides
// Command, SPHINXOPTS and O are appended to Opts.
type BuilderConfig struct {
	// Command is the builder executable name or path. Defaults to "sphinx-build".
	Command string `yaml:"command,omitempty"`
	// SourceDir is the documentation source directory, relative to project root.
	SourceDir string `yaml:"source_dir,omitempty"`
	// BuildDir is the output directory, relative to project root.
	BuildDir string `yaml:"build_dir,omitempty"`
	// DefaultTarget is the target used when none is given on the command line.
	DefaultTarget string `yaml:"default_target,omitempty"`
	// Opts are extra options forwarded verbatim to the builder.
	Opts []string `yaml:"opts,omitempty"`
	// FailOnWarning treats builder warnings as a failed build.
	FailOnWarning bool `yaml:"fail_on_warning,omitempty"`
	// Timeout is the maximum duration for a single builder run (duration string).
	// Empty means no timeout.
	Timeout string `yaml:"timeout,omitempty"`
}

// Channel enumerates publishing channels.
type Channel string

const (
	ChannelStable Channel = "stable"
	ChannelDev    Channel = "dev"
)

// PublishConfig controls the gh-pages publishing workflow.
type PublishConfig struct {
	// Remote is the git remote pushed to. Defaults to "origin".
	Remote string `yaml:"remote,omitempty"`
	// Branch is the publishing branch. Defaults to "gh-pages".
	Branch string `yaml:"branch,omitempty"`
	// StableBranch is the source branch required for the stable channel.
	StableBranch string `yaml:"stable_branch,omitempty"`
	// DevBranch is the source branch required for the dev channel.
	DevBranch string `yaml:"dev_branch,omitempty"`
	// DevSubdir is the subdirectory on the publishing branch that receives
	// dev-channel output. Defaults to "dev".
	DevSubdir string `yaml:"dev_subdir,omitempty"`
	// Preserve lists top-level entries on the publishing branch that are
	// never removed when stale content is cleared.
	Preserve []string `yaml:"preserve,omitempty"`
	// CommitName and CommitEmail identify the publishing committer.
	CommitName  string `yaml:"commit_name,omitempty"`
	CommitEmail string `yaml:"commit_email,omitempty"`
	// AllowDirty permits publishing from a working tree with uncommitted
	// changes. Off by default.
	AllowDirty bool `yaml:"allow_dirty,omitempty"`
	// Push disabled leaves the commit on the local publishing branch only.
	NoPush bool `yaml:"no_push,omitempty"`
}

// SourceBranch returns the branch a channel publishes from.
func (p PublishConfig) SourceBranch(ch Channel) string {
	if ch == ChannelDev {
		return p.DevBranch
	}
	return p.StableBranch
}

// PreviewConfig controls the local preview server.
type PreviewConfig struct {
	Port int `yaml:"port,omitempty"`
	// DebounceMS is the rebuild debounce window in milliseconds.
	DebounceMS int `yaml:"debounce_ms,omitempty"`
}

// DaemonConfig controls daemon mode.
type DaemonConfig struct {
	// BuildInterval is the periodic rebuild interval (duration string).
	BuildInterval string `yaml:"build_interval,omitempty"`
	// PublishChannel, when non-empty, publishes after each successful
	// scheduled build on that channel.
	PublishChannel string `yaml:"publish_channel,omitempty"`
	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	Events      EventsConfig `yaml:"events,omitempty"`
}

// EventsConfig controls NATS build-event publishing.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// HistoryConfig controls the local build history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Defaults to .docpages/history.db.
	Path string `yaml:"path,omitempty"`
	// Limit is the default number of records shown by the history command.
	Limit int `yaml:"limit,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
