package errors

import "errors"

// Exit codes surfaced by the CLI. ExitBuilderMissing preserves the historical
// contract that a missing documentation builder exits with status 1.
const (
	ExitOK             = 0
	ExitBuilderMissing = 1
	ExitConfig         = 2
	ExitGit            = 3
	ExitPublish        = 4
	ExitGeneric        = 10
)

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var dpe *DocPagesError
	if errors.As(err, &dpe) {
		switch dpe.Category {
		case CategoryBuilder:
			return ExitBuilderMissing
		case CategoryConfig, CategoryValidation:
			return ExitConfig
		case CategoryGit:
			return ExitGit
		case CategoryPublish:
			return ExitPublish
		}
	}
	return ExitGeneric
}
