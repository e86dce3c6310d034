package sphinx

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// DetectVersion attempts to detect the version of the builder executable.
// Returns the version string (e.g., "7.2.6") or empty string if detection
// fails. This is best-effort and will not error if the builder is unavailable.
func DetectVersion(ctx context.Context, command string) string {
	path, err := exec.LookPath(command)
	if err != nil {
		return ""
	}

	// #nosec G204 -- path is from exec.LookPath, not user-controlled
	cmd := exec.CommandContext(ctx, path, "--version")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	// Expected format examples:
	//   sphinx-build 7.2.6
	//   sphinx-build 8.1.0 (sphinx 8.1.0)
	return parseVersion(string(output))
}

var versionRe = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// parseVersion extracts the semantic version from builder version output,
// falling back to the trimmed raw output when no version-looking token is
// present.
func parseVersion(output string) string {
	matches := versionRe.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return strings.TrimSpace(output)
}
