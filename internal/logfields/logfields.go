package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTarget     = "target"
	KeyChannel    = "channel"
	KeyBranch     = "branch"
	KeyPath       = "path"
	KeyDir        = "dir"
	KeyCommit     = "commit"
	KeyBuildID    = "build_id"
	KeyDurationMS = "duration_ms"
	KeyWarnings   = "warnings"
	KeyScheduleID = "schedule_id"
	KeyError      = "error"
	KeyURL        = "url"
	KeyPort       = "port"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Channel(c string) slog.Attr      { return slog.String(KeyChannel, c) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Warnings(n int) slog.Attr        { return slog.Int(KeyWarnings, n) }
func ScheduleID(id string) slog.Attr  { return slog.String(KeyScheduleID, id) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Port(p int) slog.Attr            { return slog.Int(KeyPort, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
