package reporting_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/reporting"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError,
		Format: reporting.LogFormatJSON,
		Output: os.Stderr,
	})
}

func TestStorageSaveLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 0, testLogger())
	require.NoError(t, err)

	report := &reporting.RunReport{
		EmoeID:       "emoe-1",
		ScenarioName: "patrol",
		StartTime:    time.Now(),
		EndTime:      time.Now(),
		Status:       reporting.StatusCompleted,
		Success:      true,
	}

	path, err := storage.SaveReport(report)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := storage.LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.EmoeID, loaded.EmoeID)
	assert.Equal(t, report.ScenarioName, loaded.ScenarioName)
}

func TestStorageListReportsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 0, testLogger())
	require.NoError(t, err)

	older := &reporting.RunReport{EmoeID: "emoe-old", ScenarioName: "a", StartTime: time.Now().Add(-time.Hour)}
	newer := &reporting.RunReport{EmoeID: "emoe-new", ScenarioName: "b", StartTime: time.Now()}

	_, err = storage.SaveReport(older)
	require.NoError(t, err)
	_, err = storage.SaveReport(newer)
	require.NoError(t, err)

	summaries, err := storage.ListReports()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "emoe-new", summaries[0].EmoeID)
	assert.Equal(t, "emoe-old", summaries[1].EmoeID)
}

func TestStorageCleanupKeepsOnlyLastN(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 1, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		report := &reporting.RunReport{
			EmoeID:    filepath.Base(t.TempDir()),
			StartTime: time.Now().Add(time.Duration(i) * time.Second),
		}
		_, err := storage.SaveReport(report)
		require.NoError(t, err)
	}

	summaries, err := storage.ListReports()
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestStorageFindReportByEmoeIDMissing(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 0, testLogger())
	require.NoError(t, err)

	_, err = storage.FindReportByEmoeID("does-not-exist")
	assert.Error(t, err)
}
