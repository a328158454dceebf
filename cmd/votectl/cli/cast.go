package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"voting-ledger/models"
	"voting-ledger/service"
)

var (
	castBatchFile string
	castWorkers   int
)

var castCmd = &cobra.Command{
	Use:   "cast [CANDIDATE VOTER]",
	Short: "Cast one ballot, or a batch of ballots from a file",
	Long: `Cast a ballot for CANDIDATE on behalf of VOTER. The vote is signed,
sealed into a new block and persisted before the command returns.

With --batch, ballots are read from a YAML or JSON list of
{candidate, voter} entries and submitted concurrently; the ledger still
appends them one at a time.`,
	Example: `  votectl cast C001 V1
  votectl cast --batch ballots.yaml --workers 4`,
	RunE: runCast,
}

func init() {
	castCmd.Flags().StringVar(&castBatchFile, "batch", "", "file with a list of {candidate, voter} ballots")
	castCmd.Flags().IntVar(&castWorkers, "workers", 4, "concurrent submitters for --batch")
	rootCmd.AddCommand(castCmd)
}

type ballot struct {
	Candidate string `yaml:"candidate" json:"candidate"`
	Voter     string `yaml:"voter" json:"voter"`
}

type castOutcome struct {
	Ballot ballot        `json:"ballot"`
	Block  *models.Block `json:"block,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func runCast(cmd *cobra.Command, args []string) error {
	if castBatchFile == "" && len(args) != 2 {
		return fmt.Errorf("cast needs CANDIDATE and VOTER, or --batch FILE")
	}
	if castBatchFile != "" && len(args) != 0 {
		return fmt.Errorf("cast takes either positional arguments or --batch, not both")
	}

	return withLedger(cmd, func(svc *service.VotingService) error {
		if castBatchFile == "" {
			block, err := svc.AddBlock(args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), block)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded vote in block %d (hash %s)\n", block.Index, block.Hash)
			return nil
		}

		ballots, err := readBallots(castBatchFile)
		if err != nil {
			return err
		}
		outcomes := castBatch(cmd.Context(), svc, ballots, castWorkers)
		return reportBatch(cmd, outcomes)
	})
}

func readBallots(path string) ([]ballot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ballots: %w", err)
	}
	var ballots []ballot
	// YAML is a superset of JSON, so one decoder covers both.
	if err := yaml.Unmarshal(data, &ballots); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ballots, nil
}

// castBatch submits ballots through a QueueProcessor from several goroutines.
// Outcomes are returned in input order.
func castBatch(ctx context.Context, svc *service.VotingService, ballots []ballot, workers int) []castOutcome {
	if workers < 1 {
		workers = 1
	}
	qp := service.NewQueueProcessor(svc, workers)
	qp.Start()
	defer qp.Stop()

	outcomes := make([]castOutcome, len(ballots))
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				b := ballots[i]
				block, err := qp.Submit(ctx, b.Candidate, b.Voter)
				outcomes[i] = castOutcome{Ballot: b, Block: block}
				if err != nil {
					outcomes[i].Error = err.Error()
				}
			}
		}()
	}
	for i := range ballots {
		next <- i
	}
	close(next)
	wg.Wait()
	return outcomes
}

func reportBatch(cmd *cobra.Command, outcomes []castOutcome) error {
	rejected := 0
	for _, o := range outcomes {
		if o.Error != "" {
			rejected++
		}
	}

	if jsonOut {
		if err := printJSON(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s -> %s: %s\n", o.Ballot.Voter, o.Ballot.Candidate, o.Error)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d of %d ballots\n", len(outcomes)-rejected, len(outcomes))
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d ballots rejected", rejected, len(outcomes))
	}
	return nil
}
