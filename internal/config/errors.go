package config

import (
	"errors"
	"strings"
)

// ErrConfigStale is returned by Save when the on-disk config file was
// modified externally since this Config was loaded, so the write is
// refused rather than silently clobbering the external edit.
var ErrConfigStale = errors.New("config: file changed on disk since it was loaded")

// ValidationError accumulates every configuration problem found during a
// single Load/AddBackend/SetToolExecutionMode call, rather than failing on
// the first one, so a user fixing config by hand sees every issue at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config invalid: " + strings.Join(e.Issues, "; ")
}

// BackendNotFoundError is returned when an operation names a backend that
// does not exist in the configuration document.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "backend not found: " + e.Name
}
