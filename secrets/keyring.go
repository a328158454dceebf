package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringResolver reads keyring://service/account from the system keychain.
type KeyringResolver struct{}

func (r *KeyringResolver) Scheme() string {
	return "keyring"
}

func (r *KeyringResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	service, account, err := parseKeyringReference(reference)
	if err != nil {
		return "", err
	}

	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", &NotFoundError{
			Reference: reference,
			Backend:   "system keyring",
			Fix:       fmt.Sprintf("Store the signing secret under service %q, account %q.", service, account),
		}
	}
	if err != nil {
		return "", &BackendError{
			Backend:   "system keyring",
			Reference: reference,
			Reason:    err.Error(),
			Fix:       "On Linux the keyring needs libsecret (GNOME) or kwallet (KDE). Use env:// or file:// on headless hosts.",
			Err:       err,
		}
	}
	return secret, nil
}

// parseKeyringReference splits keyring://service/account.
func parseKeyringReference(ref string) (service, account string, err error) {
	rest := strings.TrimPrefix(ref, "keyring://")
	service, account, ok := strings.Cut(rest, "/")
	if !ok || service == "" || account == "" || strings.Contains(account, "/") {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "expected keyring://service/account"}
	}
	return service, account, nil
}
