package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"voting-ledger/blockchain"
	"voting-ledger/encryption"
	"voting-ledger/log"
	"voting-ledger/secrets"
	"voting-ledger/service"
	"voting-ledger/storage"
)

const sessionStateFile = "session.yaml"

// ledgerHandle is an opened ledger plus the resources it holds.
type ledgerHandle struct {
	svc      *service.VotingService
	store    storage.ChainStore
	stateDir string
}

// openLedger resolves the signing secret, opens the configured store and
// resumes the saved session.
func openLedger(ctx context.Context) (*ledgerHandle, error) {
	key, err := secrets.DefaultRegistry().ResolveKey(ctx, cfg.Signing.Secret)
	if err != nil {
		return nil, fmt.Errorf("resolving signing secret: %w", err)
	}
	auth, err := encryption.NewVoteAuthenticator(key, encryption.WithFreshnessWindow(cfg.Signing.FreshnessWindow))
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}

	ledgerOpts := []blockchain.Option{
		blockchain.WithDifficulty(cfg.Ledger.Difficulty),
		blockchain.WithMaxMiningAttempts(cfg.Ledger.MaxMiningAttempts),
	}
	stateDir := ""
	if cfg.Storage.DataDir != "" && cfg.Storage.Backend != storage.BackendMemory {
		stateDir = cfg.Storage.DataDir
		if !cfg.Storage.ArchiveDisabled {
			archive, err := storage.NewArchive(filepath.Join(stateDir, "archive"), cfg.Storage.ArchiveKeep)
			if err != nil {
				store.Close()
				return nil, err
			}
			ledgerOpts = append(ledgerOpts, blockchain.WithArchive(archive))
		}
	}

	opts := []service.Option{
		service.WithDuplicatePolicy(cfg.Registry.Policy),
		service.WithLedgerOptions(ledgerOpts...),
	}
	if stateDir != "" {
		state, err := loadSessionState(stateDir)
		if err != nil {
			store.Close()
			return nil, err
		}
		opts = append(opts, service.WithSessionState(state))
	}

	svc, err := service.NewVotingService(store, auth, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &ledgerHandle{svc: svc, store: store, stateDir: stateDir}, nil
}

// Close saves the session state and releases the store.
func (h *ledgerHandle) Close() error {
	var errs []error
	if h.stateDir != "" {
		errs = append(errs, saveSessionState(h.stateDir, h.svc.SessionState()))
	}
	errs = append(errs, h.store.Close())
	return errors.Join(errs...)
}

func loadSessionState(dir string) (service.SessionState, error) {
	var state service.SessionState
	data, err := os.ReadFile(filepath.Join(dir, sessionStateFile))
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("reading session state: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		log.Warn("ignoring unreadable session state, starting a new session", "error", err)
		return service.SessionState{}, nil
	}
	return state, nil
}

func saveSessionState(dir string, state service.SessionState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	path := filepath.Join(dir, sessionStateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// withLedger opens the ledger, runs fn and closes the ledger, keeping the
// first error.
func withLedger(cmd *cobra.Command, fn func(svc *service.VotingService) error) (err error) {
	h, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(h.svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
