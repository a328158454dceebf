// Package cli implements the votectl command-line interface using Cobra.
// Every command opens the configured ledger, acts on it and exits; session
// state is carried between invocations in the data directory.
package cli

import (
	"github.com/spf13/cobra"

	"voting-ledger/config"
	"voting-ledger/log"
)

var (
	verbose    bool
	jsonOut    bool
	configPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "votectl",
	Short: "Operate and audit a tamper-evident vote ledger",
	Long: `votectl casts ballots into a hash-chained, proof-of-work sealed vote
ledger, closes and resets voting sessions, and audits the chain.

Results are withheld until the session is closed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Verbose = true
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		log.Init(log.Options{
			Verbose:    cfg.Log.Verbose,
			JSONFormat: cfg.Log.JSON,
			Output:     cmd.ErrOrStderr(),
		})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.vote-ledger/config.yaml)")
}
