package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adjacentlink/emexd/pkg/driver"
	"github.com/adjacentlink/emexd/pkg/reporting"
	"github.com/adjacentlink/emexd/pkg/scenario/parser"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yml> <emoename>",
	Args:  cobra.ExactArgs(2),
	Short: "Submit one scenario as a single emoe and pump its events",
	Long:  `Loads a scenario file, submits its declared emoe under the given name, pumps its scripted events once running, and stops it.`,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("output-path", ".", "directory reports are written under")
	runCmd.Flags().Bool("monitor", false, "stream live progress to stdout while the run executes")
}

func runRun(cmd *cobra.Command, args []string) error {
	scenarioPath := args[0]
	emoeName := args[1]

	outputPath, _ := cmd.Flags().GetString("output-path")
	monitor, _ := cmd.Flags().GetBool("monitor")

	if _, err := os.Stat(scenarioPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "scenario file not found: %s\n", scenarioPath)
		os.Exit(exitFileNotFound)
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

	sc, err := parser.New(nil).ParseFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("parsing scenario: %w", err)
	}

	var pr *reporting.ProgressReporter
	if monitor {
		pr = reporting.NewProgressReporter(reporting.FormatText, logger)
	}

	r := driver.NewRunner(driver.RunnerConfig{
		DaemonAddr: fmt.Sprintf("%s:%d", address, port),
		EmoeName:   emoeName,
		Scenario:   sc,
	})

	if pr != nil {
		pr.ReportState(reporting.LiveRunState{EmoeID: emoeName, ScenarioName: emoeName, State: "starting"})
	}

	report, runErr := r.Run()

	if pr != nil {
		pr.ReportRunCompleted(report)
	}

	storage, err := reporting.NewStorage(outputPath, 0, logger)
	if err != nil {
		return fmt.Errorf("creating report storage: %w", err)
	}
	if _, err := storage.SaveReport(report); err != nil {
		logger.Warn("failed to save report", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("scenario run failed: %w", runErr)
	}
	if !report.Success {
		return fmt.Errorf("scenario run did not complete successfully: %s", report.Message)
	}

	logger.Info("scenario run completed successfully", "emoe_id", report.EmoeID)
	return nil
}

func logLevel() reporting.LogLevel {
	if verbose {
		return reporting.LogLevelDebug
	}
	return reporting.LogLevelInfo
}
