package publish

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/docpages/internal/config"
)

// ErrDirtyWorktree is returned when publishing from a working tree with
// uncommitted changes and allow_dirty is not set.
var ErrDirtyWorktree = errors.New("working tree has uncommitted changes (set publish.allow_dirty to override)")

// WrongBranchError reports a channel/branch mismatch: the stable channel
// publishes from master, the dev channel from develop (both configurable).
type WrongBranchError struct {
	Channel config.Channel
	Want    string
	Got     string
}

func (e *WrongBranchError) Error() string {
	return fmt.Sprintf("channel %q publishes from branch %q but %q is checked out", e.Channel, e.Want, e.Got)
}

// SiteMissingError reports absent or empty build output.
type SiteMissingError struct {
	Dir string
}

func (e *SiteMissingError) Error() string {
	return fmt.Sprintf("no built site found at %s (run a build first)", e.Dir)
}
