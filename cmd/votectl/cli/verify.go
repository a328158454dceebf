package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"voting-ledger/service"
)

type verifyOutput struct {
	Valid     bool   `json:"valid"`
	Blocks    int    `json:"blocks"`
	Error     string `json:"error,omitempty"`
	Recovered string `json:"recovered,omitempty"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify every hash, link and vote signature in the chain",
	Long: `Re-verify the chain: genesis sentinel, block indexes, hashes,
difficulty target, previous-hash links and vote signatures.

If the stored chain failed these checks when it was loaded, it has already
been archived and replaced by a fresh genesis block; verify reports that too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			out := verifyOutput{Blocks: len(svc.GetChain())}
			verr := svc.Validate()
			out.Valid = verr == nil
			if verr != nil {
				out.Error = verr.Error()
			}
			if r := svc.Recovery(); r != nil {
				out.Recovered = r.Error()
				if r.Archived != "" {
					out.Recovered += " (archived to " + r.Archived + ")"
				}
			}

			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				if out.Recovered != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "stored chain was discarded at load: %s\n", out.Recovered)
				}
				if out.Valid {
					fmt.Fprintf(cmd.OutOrStdout(), "chain valid (%d blocks)\n", out.Blocks)
				}
			}

			if verr != nil {
				return verr
			}
			if out.Recovered != "" {
				return fmt.Errorf("stored chain failed verification and was replaced")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
