package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adjacentlink/emexd/pkg/driver"
	"github.com/adjacentlink/emexd/pkg/reporting"
	"github.com/adjacentlink/emexd/pkg/scenario/parser"
)

var batchCmd = &cobra.Command{
	Use:   "batch <scenario.yml>...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Run NumTrials instances of one or more scenarios concurrently",
	Long:  `Loads every named scenario file, submits NumTrials trials of each against the same daemon, and pumps each trial's events once it reaches RUNNING.`,
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().String("output-path", ".", "directory reports are written under")
	batchCmd.Flags().Int("numtrials", 1, "number of trial instances to run per scenario")
	batchCmd.Flags().Bool("monitor", false, "stream live progress to stdout while the batch executes")
}

func runBatch(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output-path")
	numTrials, _ := cmd.Flags().GetInt("numtrials")
	monitor, _ := cmd.Flags().GetBool("monitor")

	for _, path := range args {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "scenario file not found: %s\n", path)
			os.Exit(exitFileNotFound)
		}
	}
	if fi, err := os.Stat(outputPath); err == nil && !fi.IsDir() {
		fmt.Fprintf(os.Stderr, "--output-path %s exists and is not a directory\n", outputPath)
		os.Exit(exitPathConflict)
	}

	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel(),
		Format: reporting.LogFormatText,
		Output: os.Stderr,
	})

	seenNames := make(map[string]bool)
	var scenarios []driver.NamedScenario
	for _, path := range args {
		name := scenarioName(path)
		if seenNames[name] {
			fmt.Fprintf(os.Stderr, "duplicate scenario name %q (derived from %s)\n", name, path)
			os.Exit(exitDuplicateName)
		}
		seenNames[name] = true

		sc, err := parser.New(nil).ParseFile(path)
		if err != nil {
			return fmt.Errorf("parsing scenario %s: %w", path, err)
		}
		scenarios = append(scenarios, driver.NamedScenario{Name: name, File: sc})
	}

	br := driver.NewBatchRunner(driver.BatchConfig{
		DaemonAddr: fmt.Sprintf("%s:%d", address, port),
		Scenarios:  scenarios,
		NumTrials:  numTrials,
	})

	var pr *reporting.ProgressReporter
	if monitor {
		pr = reporting.NewProgressReporter(reporting.FormatText, logger)
	}

	runErr := br.Run(context.Background())

	storage, err := reporting.NewStorage(outputPath, 0, logger)
	if err != nil {
		return fmt.Errorf("creating report storage: %w", err)
	}

	for _, report := range br.Reports() {
		if pr != nil {
			pr.ReportRunCompleted(report)
		}
		if _, err := storage.SaveReport(report); err != nil {
			logger.Warn("failed to save report", "emoe_id", report.EmoeID, "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("batch run failed: %w", runErr)
	}

	failures := 0
	for _, report := range br.Reports() {
		if !report.Success {
			failures++
		}
	}
	logger.Info("batch completed", "trials", len(br.Reports()), "failures", failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d trials did not complete successfully", failures, len(br.Reports()))
	}
	return nil
}

// scenarioName derives a batch trial's base name from its scenario
// file's path, matching the original's use of the scenario file's stem.
func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
