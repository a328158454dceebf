package secrets

import (
	"fmt"
	"strings"
)

// UnsupportedSchemeError is returned for a reference whose scheme has no
// registered resolver. Supported lists the schemes that do.
type UnsupportedSchemeError struct {
	Scheme    string
	Supported []string
}

func (e *UnsupportedSchemeError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("no resolver for secret scheme %q", e.Scheme)
	}
	return fmt.Sprintf("no resolver for secret scheme %q (use one of: %s)", e.Scheme, strings.Join(e.Supported, ", "))
}

// InvalidReferenceError covers both a malformed reference and a resolved
// value that cannot be used as a signing key. The latter has no Reference.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	if e.Reference == "" {
		return "unusable signing secret: " + e.Reason
	}
	return fmt.Sprintf("invalid secret reference %q: %s", e.Reference, e.Reason)
}

// NotFoundError means the backend answered but holds no value for the
// reference. Fix tells the operator where to put it.
type NotFoundError struct {
	Reference string
	Backend   string
	Fix       string
}

func (e *NotFoundError) Error() string {
	return withFix(fmt.Sprintf("%s has no secret at %s", e.Backend, e.Reference), e.Fix)
}

// BackendError means the backend could not be asked at all.
type BackendError struct {
	Backend   string
	Reference string
	Reason    string
	Fix       string
	Err       error
}

func (e *BackendError) Error() string {
	return withFix(fmt.Sprintf("%s: %s", e.Backend, e.Reason), e.Fix)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func withFix(msg, fix string) string {
	if fix == "" {
		return msg
	}
	return msg + "\n\n  " + fix
}
