package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score the input layer and export reports in one pass",
	Long: `Runs score followed by export. The export stage works from the scored
records in memory, so the output layer is written once and never read back.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("run"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "run"))

	p, _, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	ls, err := openLayers(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ls.close() }()

	scored, exported, err := p.Run(ctx, ls.src, ls.sink)
	if err != nil {
		return err
	}

	log.Info("run complete",
		zap.Int("records", scored.Batch.RecordsTotal),
		zap.Int("exported", exported.Records),
	)
	out := cmd.OutOrStdout()
	printScoreSummary(out, scored)
	printExportSummary(out, exported)
	return nil
}
