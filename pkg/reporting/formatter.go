package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportFormat is the run report's rendered output format.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter renders RunReports into human-facing output, adapted from
// the teacher's Formatter (pkg/reporting/formatter.go).
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{logger: logger}
}

// GenerateReport renders report in the given format to outputPath.
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Formatter) generateHTMLReport(report *RunReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

func (f *Formatter) generateTextReport(report *RunReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   EMOE RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	status := "COMPLETED"
	if !report.Success {
		status = "FAILED"
	}
	if report.Status == StatusStopped {
		status = "STOPPED"
	}

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", status))
	buf.WriteString(fmt.Sprintf("Emoe ID:      %s\n", report.EmoeID))
	buf.WriteString(fmt.Sprintf("Scenario:     %s\n", report.ScenarioName))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	if report.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:      %s\n", report.Message))
	}
	buf.WriteString("\n")

	if len(report.Platforms) > 0 {
		buf.WriteString("PLATFORMS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, p := range report.Platforms {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, p.Name))
			buf.WriteString(fmt.Sprintf("   Template: %s\n", p.Template))
			buf.WriteString("\n")
		}
	}

	if len(report.Events) > 0 {
		buf.WriteString("SCENARIO EVENTS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, e := range report.Events {
			mark := "ok"
			if !e.OK {
				mark = "failed"
			}
			buf.WriteString(fmt.Sprintf("%d. [%s] %s at t=%s", i+1, mark, e.Kind, e.Timepoint))
			if e.Target != "" {
				buf.WriteString(fmt.Sprintf(" on %s", e.Target))
			}
			buf.WriteString("\n")
			if e.Message != "" {
				buf.WriteString(fmt.Sprintf("   %s\n", e.Message))
			}
		}
		buf.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path for report in outputDir.
func GetReportPath(report *RunReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, report.EmoeID, ext)
	return filepath.Join(outputDir, filename)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Emoe Run Report - {{.EmoeID}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               line-height: 1.6; color: #333; max-width: 1100px; margin: 0 auto; padding: 20px; }
        h1, h2 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 10px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background-color: #3498db; color: white; }
    </style>
</head>
<body>
    <h1>Emoe Run Report</h1>
    <p>{{.ScenarioName}} &mdash; {{.EmoeID}}</p>

    <h2>Summary</h2>
    <p>Status: {{.Status}} ({{if .Success}}success{{else}}failure{{end}})</p>
    <p>Start: {{formatTime .StartTime}} &mdash; End: {{formatTime .EndTime}} &mdash; Duration: {{.Duration}}</p>

    {{if .Platforms}}
    <h2>Platforms</h2>
    <table>
        <thead><tr><th>Name</th><th>Template</th></tr></thead>
        <tbody>
        {{range .Platforms}}
            <tr><td>{{.Name}}</td><td>{{.Template}}</td></tr>
        {{end}}
        </tbody>
    </table>
    {{end}}

    {{if .Events}}
    <h2>Scenario Events</h2>
    <table>
        <thead><tr><th>Timepoint</th><th>Kind</th><th>Target</th><th>OK</th></tr></thead>
        <tbody>
        {{range .Events}}
            <tr><td>{{.Timepoint}}</td><td>{{.Kind}}</td><td>{{.Target}}</td><td>{{.OK}}</td></tr>
        {{end}}
        </tbody>
    </table>
    {{end}}

    {{if .Errors}}
    <h2>Errors</h2>
    <ul>
        {{range .Errors}}<li>{{.}}</li>{{end}}
    </ul>
    {{end}}
</body>
</html>
`
