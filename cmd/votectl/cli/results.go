package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voting-ledger/service"
)

var resultsByTier bool

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show vote counts once voting is closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			tally := svc.Tally()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), tally)
			}
			if !tally.Complete {
				fmt.Fprintln(cmd.OutOrStdout(), "voting is still open; results are withheld until it is closed")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if resultsByTier {
				fmt.Fprintln(w, "TIER\tCANDIDATE\tVOTES")
				for _, tier := range sortedKeys(tally.ByTier) {
					for _, candidate := range sortedKeys(tally.ByTier[tier]) {
						fmt.Fprintf(w, "%s\t%s\t%d\n", tier, candidate, tally.ByTier[tier][candidate])
					}
				}
			} else {
				fmt.Fprintln(w, "CANDIDATE\tVOTES")
				for _, candidate := range sortedKeys(tally.Results) {
					fmt.Fprintf(w, "%s\t%d\n", candidate, tally.Results[candidate])
				}
			}
			fmt.Fprintf(w, "TOTAL\t%d\n", tally.TotalVotes)
			return w.Flush()
		})
	},
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsByTier, "by-tier", false, "group counts by election tier")
	rootCmd.AddCommand(resultsCmd)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
