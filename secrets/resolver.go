// Package secrets resolves the signing secret from external backends.
package secrets

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Resolver resolves a secret reference to its plaintext value.
type Resolver interface {
	// Scheme returns the URI scheme this resolver handles (e.g., "env", "keyring").
	Scheme() string

	// Resolve fetches the secret value for the given reference.
	Resolve(ctx context.Context, reference string) (string, error)
}

// Registry dispatches references to resolvers by scheme.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry returns a registry holding resolvers.
func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{resolvers: make(map[string]Resolver)}
	for _, res := range resolvers {
		r.Register(res)
	}
	return r
}

// DefaultRegistry returns a registry with the env, file, keyring and awssm
// resolvers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&EnvResolver{},
		&FileResolver{},
		&KeyringResolver{},
		NewAWSSecretsManagerResolver(),
	)
}

// Register adds a resolver, replacing any resolver for the same scheme.
func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[res.Scheme()] = res
}

// Resolve dispatches to the appropriate resolver based on URI scheme.
func (r *Registry) Resolve(ctx context.Context, reference string) (string, error) {
	scheme := parseScheme(reference)
	if scheme == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "missing scheme"}
	}

	r.mu.RLock()
	res, ok := r.resolvers[scheme]
	r.mu.RUnlock()

	if !ok {
		return "", &UnsupportedSchemeError{Scheme: scheme, Supported: r.schemes()}
	}

	return res.Resolve(ctx, reference)
}

func (r *Registry) schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.resolvers))
	for scheme := range r.resolvers {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// ResolveKey resolves reference and decodes it with DecodeKey.
func (r *Registry) ResolveKey(ctx context.Context, reference string) ([]byte, error) {
	value, err := r.Resolve(ctx, reference)
	if err != nil {
		return nil, err
	}
	return DecodeKey(value)
}

// DecodeKey turns a resolved secret into key bytes. A value starting with 0x
// is decoded as hex; anything else is used verbatim. Surrounding whitespace
// is ignored.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &InvalidReferenceError{Reason: "secret is empty"}
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		key, err := hexutil.Decode("0x" + value[2:])
		if err != nil {
			return nil, &InvalidReferenceError{Reason: "secret is not valid hex: " + err.Error()}
		}
		return key, nil
	}
	return []byte(value), nil
}

// parseScheme extracts the scheme from a URI (e.g., "env" from "env://NAME").
func parseScheme(ref string) string {
	idx := strings.Index(ref, "://")
	if idx < 1 {
		return ""
	}
	return ref[:idx]
}
