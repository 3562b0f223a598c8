package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/aleister1102/tariffwatch/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Exit status of a run that completed with failed providers.
const exitDegraded = 2

type runFlags struct {
	providers []string
	runID     string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every configured resource once",
		Long: `Run retrieves every configured resource, extracts the new or changed ones and
hands the records to the configured stores. It exits with status 2 when a
provider could not be retrieved or the run was aborted.

Examples:
  tariffwatch run
  tariffwatch run --providers ohm,mint --config config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cmd.OutOrStdout(), root, flags)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.providers, "providers", "p", nil, "Only check these providers (comma separated)")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "Run identifier (default: random UUID)")
	return cmd
}

func runOnce(ctx context.Context, out io.Writer, root *rootFlags, flags *runFlags) error {
	runID := flags.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	cfg, zLogger, err := loadConfig(root, runID)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := pipeline.Build(cfg, zLogger)
	defer cleanup()
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, pipeline.RunOptions{RunID: runID, Providers: flags.providers})
	if err != nil {
		return err
	}

	printSummary(out, result)

	if result.StateError != nil {
		return &exitError{code: exitDegraded, msg: fmt.Sprintf("state file not saved: %v", result.StateError)}
	}
	if result.Aborted {
		return &exitError{code: exitDegraded, msg: "run aborted"}
	}
	for _, status := range result.ProviderStatus {
		if status == models.OutcomeFetchFailed {
			return &exitError{code: exitDegraded, msg: "some providers could not be retrieved"}
		}
	}
	return nil
}

// printSummary writes one line per provider, e.g. "ohm: updated(12)".
func printSummary(out io.Writer, result *pipeline.RunResult) {
	counts := make(map[string]int)
	for _, o := range result.Outcomes {
		counts[o.Identity.Provider] += o.RecordCount
	}

	providers := make([]string, 0, len(result.ProviderStatus))
	for name := range result.ProviderStatus {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	fmt.Fprintf(out, "run %s: %d resources, %d changes, %d records\n",
		result.RunID, len(result.Outcomes), len(result.Events), len(result.Records))
	for _, name := range providers {
		status := result.ProviderStatus[name]
		if status == models.OutcomeUpdated {
			fmt.Fprintf(out, "  %s: %s(%d)\n", name, status, counts[name])
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", name, status)
	}
	if result.PayloadPath != "" {
		fmt.Fprintf(out, "notification: %s\n", result.PayloadPath)
	}
}
