package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvResolver reads env://NAME from the process environment.
type EnvResolver struct{}

func (r *EnvResolver) Scheme() string {
	return "env"
}

func (r *EnvResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := strings.TrimPrefix(reference, "env://")
	if name == "" || strings.ContainsAny(name, "/=") {
		return "", &InvalidReferenceError{Reference: reference, Reason: "expected env://NAME"}
	}
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", &NotFoundError{
			Reference: reference,
			Backend:   "environment",
			Fix:       "Export " + name + " with the ledger signing secret before running votectl.",
		}
	}
	return value, nil
}
