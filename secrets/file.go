package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// FileResolver reads file:///absolute/path. Trailing newlines are trimmed.
type FileResolver struct{}

func (r *FileResolver) Scheme() string {
	return "file"
}

func (r *FileResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	u, err := url.Parse(reference)
	if err != nil || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "", &InvalidReferenceError{Reference: reference, Reason: "expected file:///absolute/path"}
	}

	info, err := os.Stat(u.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", &NotFoundError{
			Reference: reference,
			Backend:   "file",
			Fix:       "Write the signing secret to " + u.Path + " and run: chmod 600 " + u.Path,
		}
	}
	if err != nil {
		return "", &BackendError{Backend: "file", Reference: reference, Reason: err.Error(), Err: err}
	}
	if info.Mode().Perm()&0o077 != 0 {
		return "", &BackendError{
			Backend:   "file",
			Reference: reference,
			Reason:    fmt.Sprintf("secret file is accessible by other users (mode %#o)", info.Mode().Perm()),
			Fix:       "Run: chmod 600 " + u.Path,
		}
	}

	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", &BackendError{Backend: "file", Reference: reference, Reason: err.Error(), Err: err}
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
