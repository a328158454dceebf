package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"voting-ledger/service"
)

var chainFrom int

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the blocks of the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			blocks := svc.GetChain()
			if chainFrom > 0 {
				if chainFrom >= len(blocks) {
					blocks = blocks[:0]
				} else {
					blocks = blocks[chainFrom:]
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), blocks)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tTIME\tCANDIDATE\tVOTER\tNONCE\tHASH")
			for _, b := range blocks {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					b.Index,
					time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339),
					b.Vote.CandidateID,
					b.Vote.VoterID,
					b.Nonce,
					shortHash(b.Hash))
			}
			return w.Flush()
		})
	},
}

func init() {
	chainCmd.Flags().IntVar(&chainFrom, "from", 0, "first block index to print")
	rootCmd.AddCommand(chainCmd)
}

func shortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16]
}
