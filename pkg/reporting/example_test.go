package reporting_test

import (
	"fmt"
	"os"
	"time"

	"github.com/adjacentlink/emexd/pkg/reporting"
)

// Example demonstrates the reporting package's logger/storage/formatter usage.
func Example() {
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	logger.Info("emoe run starting")
	logger.Info("platform instantiated", "name", "uav-1", "template", "quadcopter")

	storage, err := reporting.NewStorage("./run-reports", 10, logger)
	if err != nil {
		fmt.Printf("Failed to create storage: %v\n", err)
		return
	}
	defer os.RemoveAll("./run-reports")

	report := &reporting.RunReport{
		EmoeID:       "emoe-12345",
		ScenarioName: "uav-patrol",
		StartTime:    time.Now().Add(-5 * time.Minute),
		EndTime:      time.Now(),
		Duration:     "5m0s",
		Status:       reporting.StatusCompleted,
		Success:      true,
		Platforms: []reporting.PlatformInfo{
			{Name: "uav-1", Template: "quadcopter", EmoeID: "emoe-12345"},
		},
		Events: []reporting.EventInfo{
			{Kind: "pov", Target: "uav-1", Timepoint: "10.0", SentAt: time.Now(), OK: true},
		},
	}

	path, err := storage.SaveReport(report)
	if err != nil {
		fmt.Printf("Failed to save report: %v\n", err)
		return
	}
	fmt.Printf("Report saved successfully\n")

	summaries, err := storage.ListReports()
	if err != nil {
		fmt.Printf("Failed to list reports: %v\n", err)
		return
	}
	fmt.Printf("Found %d report(s)\n", len(summaries))
	for _, summary := range summaries {
		fmt.Printf("  %s: %s (%s)\n", summary.EmoeID, summary.ScenarioName, summary.Status)
	}

	loadedReport, err := storage.LoadReport(path)
	if err != nil {
		fmt.Printf("Failed to load report: %v\n", err)
		return
	}
	fmt.Printf("Loaded report for emoe: %s\n", loadedReport.EmoeID)

	formatter := reporting.NewFormatter(logger)

	textPath := "./run-reports/report.txt"
	if err := formatter.GenerateReport(report, reporting.ReportFormatText, textPath); err != nil {
		fmt.Printf("Failed to generate text report: %v\n", err)
		return
	}
	fmt.Printf("Text report generated\n")

	htmlPath := "./run-reports/report.html"
	if err := formatter.GenerateReport(report, reporting.ReportFormatHTML, htmlPath); err != nil {
		fmt.Printf("Failed to generate HTML report: %v\n", err)
		return
	}
	fmt.Printf("HTML report generated\n")

	// Output will vary due to timestamps, so we don't include it
}
