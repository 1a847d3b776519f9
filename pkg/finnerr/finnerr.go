// Package finnerr defines the error taxonomy shared by the installation
// engine. Callers match categories with errors.Is and inspect details with
// errors.As on the typed errors.
package finnerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports an unknown registry package or a missing
	// manifest, lock record or package entry.
	ErrNotFound = errors.New("not found")
	// ErrNetwork reports a transport failure talking to the registry.
	ErrNetwork = errors.New("network error")
	// ErrAPI reports a non-2xx registry response other than 404.
	ErrAPI = errors.New("registry API error")
	// ErrMalformedResponse reports a registry body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed registry response")
	// ErrFetch reports a clone or checkout failure.
	ErrFetch = errors.New("fetch failed")
	// ErrValidation reports an unrecognized package layout.
	ErrValidation = errors.New("package validation failed")
	// ErrIntegrity reports a checksum mismatch between the lock and disk.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrIO reports copy, remove or read failures.
	ErrIO = errors.New("i/o error")
	// ErrInvalidRef reports a package reference that cannot be parsed.
	ErrInvalidRef = errors.New("invalid package reference")
)

// ValidationError lists every marker file that was looked for and missing.
type ValidationError struct {
	Dir     string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q does not look like a Fin package or native library (missing: %s); use --ignore-regulations to force installation",
		ErrValidation, e.Dir, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IntegrityError carries both digests of a failed drift check.
type IntegrityError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s for %q: lock has %s, installed content hashes to %s",
		ErrIntegrity, e.Name, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// IO wraps err as an ErrIO failure for op. A nil err returns nil.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
