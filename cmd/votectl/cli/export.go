package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voting-ledger/anonymizer"
	"voting-ledger/service"
)

var (
	exportOutput     string
	exportAnonymized bool
	exportShuffle    bool
	exportMix        bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the chain, or the anonymized votes once voting is closed",
	Long: `Export writes the full chain as JSON in its stored layout.

With --anonymized it writes only {timestamp, candidateId} pairs with the
voter ids removed; this requires a closed session. --shuffle randomizes
their order, and --mix additionally redraws the timestamps within the
session's time range.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	exportCmd.Flags().BoolVar(&exportAnonymized, "anonymized", false, "export anonymized votes instead of blocks")
	exportCmd.Flags().BoolVar(&exportShuffle, "shuffle", false, "shuffle anonymized votes")
	exportCmd.Flags().BoolVar(&exportMix, "mix", false, "shuffle anonymized votes and redraw their timestamps")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if (exportShuffle || exportMix) && !exportAnonymized {
		return errors.New("--shuffle and --mix apply to --anonymized exports only")
	}

	return withLedger(cmd, func(svc *service.VotingService) error {
		var payload any
		if !exportAnonymized {
			payload = svc.GetChain()
		} else {
			if !svc.IsVotingComplete() {
				return errors.New("voting is still open; anonymized votes are withheld until it is closed")
			}
			votes := svc.GetAnonymizedVotes()
			var err error
			switch {
			case exportMix:
				votes, err = anonymizer.New().MixVotes(votes)
			case exportShuffle:
				votes, err = anonymizer.New().ShuffleVotes(votes)
			}
			if err != nil {
				return err
			}
			payload = votes
		}

		if exportOutput == "" {
			if err := printJSON(cmd.OutOrStdout(), payload); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			return nil
		}
		if err := writeExportFile(exportOutput, payload); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", exportOutput)
		return nil
	})
}

// writeExportFile reports the Close error too, so a failed flush is not
// taken for a complete export.
func writeExportFile(path string, payload any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := printJSON(f, payload); err != nil {
		f.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	return nil
}
