package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raihan/conclave/pkg/collab"
)

var (
	runPrompt       string
	runRounds       int
	runTimeLimitMs  int64
	runThreshold    float64
	runParticipants []string
	runJSON         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single collaboration session",
	Long: `Run one collaboration session to completion and print the result.
Participants and engine tuning come from the config file; the task
itself comes from --prompt.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "task for the participants (required)")
	runCmd.Flags().IntVar(&runRounds, "rounds", 0, "maximum number of rounds (0 uses the configured default)")
	runCmd.Flags().Int64Var(&runTimeLimitMs, "time-limit-ms", 0, "session time budget in milliseconds (0 uses the configured default)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "consensus threshold percentage (0 uses the configured default)")
	runCmd.Flags().StringSliceVar(&runParticipants, "participants", nil, "preferred participant IDs, in order")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full session output as JSON")
	_ = runCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := collab.CollaborationRequest{
		Prompt:                runPrompt,
		MaxRounds:             runRounds,
		TimeLimitMs:           runTimeLimitMs,
		ConsensusThreshold:    runThreshold,
		PreferredParticipants: runParticipants,
	}

	session, err := rt.manager.StartSession(ctx, "cli", req)
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	if runJSON {
		data, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printSessionSummary(session)
	return nil
}

func printSessionSummary(session *collab.CollaborativeSession) {
	fmt.Printf("Session %s: %s\n", session.ID, session.Status)
	if session.Outcome != "" && session.Outcome != session.Status {
		fmt.Printf("Outcome: %s\n", session.Outcome)
	}
	fmt.Printf("Rounds: %d  Participants: %d  Duration: %s\n",
		len(session.Rounds), len(session.Participants),
		session.Metrics.TotalDuration.Round(time.Millisecond))

	out := session.Output
	if out == nil {
		return
	}
	agreement := 0.0
	if n := len(out.RoundOutputs); n > 0 {
		agreement = out.RoundOutputs[n-1].AgreementScore * 100
	}
	fmt.Printf("Consensus: %s (agreement %.0f%%, quality %.0f)\n",
		out.ConsensusLevel, agreement, out.QualityScore)
	fmt.Printf("Tokens: %d (estimated cost $%.4f)\n",
		out.TokenUsage.TotalTokens, out.TokenUsage.EstimatedCost)
	fmt.Println()
	fmt.Println(out.Content)
}
