package config

// Default values applied after YAML decoding. Zero values always resolve to
// something usable so a missing config file still yields a working tool.
const (
	DefaultBuilderCommand = "sphinx-build"
	DefaultSourceDir      = "source"
	DefaultBuildDir       = "build"
	DefaultTarget         = "html"

	DefaultPublishRemote = "origin"
	DefaultPublishBranch = "gh-pages"
	DefaultStableBranch  = "master"
	DefaultDevBranch     = "develop"
	DefaultDevSubdir     = "dev"
	DefaultCommitName    = "docpages"
	DefaultCommitEmail   = "docpages@localhost"

	DefaultPreviewPort  = 8000
	DefaultDebounceMS   = 300
	DefaultHistoryPath  = ".docpages/history.db"
	DefaultHistoryLimit = 20

	DefaultBuildInterval = "15m"
	DefaultMetricsAddr   = ":9090"
	DefaultEventsSubject = "docpages.builds"
	DefaultEventsStream  = "DOCPAGES"
)

// defaultPreserve lists publishing-branch entries never cleared as stale.
var defaultPreserve = []string{".nojekyll", "CNAME"}

// ApplyDefaults fills unset fields in-place.
func (c *Config) ApplyDefaults() {
	if c.Builder.Command == "" {
		c.Builder.Command = DefaultBuilderCommand
	}
	if c.Builder.SourceDir == "" {
		c.Builder.SourceDir = DefaultSourceDir
	}
	if c.Builder.BuildDir == "" {
		c.Builder.BuildDir = DefaultBuildDir
	}
	if c.Builder.DefaultTarget == "" {
		c.Builder.DefaultTarget = DefaultTarget
	}

	if c.Publish.Remote == "" {
		c.Publish.Remote = DefaultPublishRemote
	}
	if c.Publish.Branch == "" {
		c.Publish.Branch = DefaultPublishBranch
	}
	if c.Publish.StableBranch == "" {
		c.Publish.StableBranch = DefaultStableBranch
	}
	if c.Publish.DevBranch == "" {
		c.Publish.DevBranch = DefaultDevBranch
	}
	if c.Publish.DevSubdir == "" {
		c.Publish.DevSubdir = DefaultDevSubdir
	}
	if len(c.Publish.Preserve) == 0 {
		c.Publish.Preserve = append([]string(nil), defaultPreserve...)
	}
	if c.Publish.CommitName == "" {
		c.Publish.CommitName = DefaultCommitName
	}
	if c.Publish.CommitEmail == "" {
		c.Publish.CommitEmail = DefaultCommitEmail
	}

	if c.Preview.Port == 0 {
		c.Preview.Port = DefaultPreviewPort
	}
	if c.Preview.DebounceMS == 0 {
		c.Preview.DebounceMS = DefaultDebounceMS
	}

	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.History.Limit == 0 {
		c.History.Limit = DefaultHistoryLimit
	}

	if c.Daemon.BuildInterval == "" {
		c.Daemon.BuildInterval = DefaultBuildInterval
	}
	if c.Daemon.MetricsAddr == "" {
		c.Daemon.MetricsAddr = DefaultMetricsAddr
	}
	if c.Daemon.Events.Subject == "" {
		c.Daemon.Events.Subject = DefaultEventsSubject
	}
	if c.Daemon.Events.Stream == "" {
		c.Daemon.Events.Stream = DefaultEventsStream
	}
}
