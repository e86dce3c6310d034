// Package sphinx wraps the external sphinx-build executable: locating it,
// detecting its version, and running documentation builds.
package sphinx

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// NotFoundError reports that the builder executable could not be located.
// The CLI maps it to exit status 1 and prints Guidance.
type NotFoundError struct {
	Command string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("documentation builder %q not found: %v", e.Command, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Guidance returns installation help printed when the builder is missing.
func (e *NotFoundError) Guidance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %q command was not found. Make sure you have Sphinx installed,\n", e.Command)
	b.WriteString("then set the SPHINXBUILD environment variable to point to the full\n")
	b.WriteString("path of the 'sphinx-build' executable. Alternatively you may add the\n")
	b.WriteString("Sphinx directory to PATH.\n\n")
	b.WriteString("If you don't have Sphinx installed, grab it from https://www.sphinx-doc.org/\n")
	return b.String()
}

// IsNotFound reports whether err is a builder-not-found error.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// Locate resolves the builder command to an absolute path. Commands
// containing a path separator are checked directly; bare names go through
// PATH lookup.
func Locate(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", &NotFoundError{Command: command, Err: err}
	}
	return path, nil
}
