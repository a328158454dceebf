package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"voting-ledger/service"
)

var resetConfirm bool

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the voting session and release results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			if err := svc.SetVotingEnded(true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "voting session %s closed with %d votes\n", svc.SessionID(), len(svc.GetChain())-1)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the ledger back to genesis and open a new session",
	Long: `Reset truncates the ledger to its genesis block, forgets which voters
have voted and opens a new session. The outgoing chain is archived in the
data directory unless archiving is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			votes := len(svc.GetChain()) - 1
			if !resetConfirm && votes > 0 {
				return fmt.Errorf("reset discards %d recorded votes; rerun with --yes to confirm", votes)
			}
			previous := svc.SessionID()
			if err := svc.SetVotingEnded(false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s replaced by %s\n", previous, svc.SessionID())
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm discarding recorded votes")
	rootCmd.AddCommand(closeCmd, resetCmd)
}
