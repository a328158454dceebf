package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"voting-ledger/service"
)

var statusVoter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and ledger state, or one voter's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(svc *service.VotingService) error {
			if statusVoter != "" {
				return showVoterStatus(cmd, svc.VoterStatus(statusVoter))
			}
			return showStatus(cmd, svc.Status())
		})
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusVoter, "voter", "", "show whether this voter has voted")
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, st service.Status) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), st)
	}

	state := "open"
	if !st.Active {
		state = "closed"
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Session:\t%s (%s)\n", st.SessionID, state)
	fmt.Fprintf(w, "Opened:\t%s\n", st.OpenedAt.Format(time.RFC3339))
	if st.ClosedAt != nil {
		fmt.Fprintf(w, "Closed:\t%s\n", st.ClosedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Blocks:\t%d\n", st.Blocks)
	fmt.Fprintf(w, "Voters:\t%d\n", st.Voters)
	fmt.Fprintf(w, "Policy:\t%s\n", st.Policy)
	fmt.Fprintf(w, "Difficulty:\t%d\n", st.Difficulty)
	fmt.Fprintf(w, "Last hash:\t%s\n", st.LastHash)
	fmt.Fprintf(w, "Valid:\t%t\n", st.Valid)
	if st.Recovered != "" {
		fmt.Fprintf(w, "Recovered:\t%s\n", st.Recovered)
	}
	return w.Flush()
}

func showVoterStatus(cmd *cobra.Command, vs service.VoterStatus) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), vs)
	}
	if !vs.HasVoted {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has not voted in this session\n", vs.VoterID)
		return nil
	}
	tiers := make([]string, len(vs.Tiers))
	for i, t := range vs.Tiers {
		tiers[i] = string(t)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s voted (%s), last at %s\n",
		vs.VoterID,
		strings.Join(tiers, ", "),
		time.UnixMilli(vs.LastActivity).UTC().Format(time.RFC3339))
	return nil
}
