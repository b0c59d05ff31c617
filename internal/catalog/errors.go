package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// LoadError reports that one or more catalog sources could not be fetched or
// parsed. It is surfaced once, at load time.
type LoadError struct {
	Failures []SourceError
}

// SourceError is the failure of a single catalog source.
type SourceError struct {
	Location string
	Err      error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Location, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

func (e *LoadError) Error() string {
	if len(e.Failures) == 1 {
		return "loading catalogs: " + e.Failures[0].Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("loading catalogs: %d sources failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the per-source errors to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// IsLoadError reports whether err is, or wraps, a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func newLoadError(location string, err error) *LoadError {
	return &LoadError{Failures: []SourceError{{Location: location, Err: err}}}
}
