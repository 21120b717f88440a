package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuemetrics/config"
	"issuemetrics/models"
)

type fakeSource struct {
	rest    []models.IssueRecord
	graphql []models.IssueRecord
	err     error
}

func (f *fakeSource) ListIssues(context.Context) ([]models.IssueRecord, error) {
	return f.rest, f.err
}

func (f *fakeSource) FetchIssuesWithStatus(context.Context) ([]models.IssueRecord, error) {
	return f.graphql, f.err
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MetricsDir:       filepath.Join(t.TempDir(), "Prozessmetriken"),
		IssueExportCSV:   "issues.csv",
		ProjectStatusCSV: "project.csv",
		StatusPivotCSV:   "pivot.csv",
		StatusEventsCSV:  "events.csv",
		StatusField:      "Status",
		TieBreak:         config.TieBreakLast,
		KnownStatuses:    config.DefaultKnownStatuses,
		IncludeCreatedAt: true,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunStatusPivotAcrossRuns(t *testing.T) {
	cfg := newTestConfig(t)
	source := &fakeSource{graphql: []models.IssueRecord{
		issueWithStatus(1, "Todo", "2024-01-01T00:00:00Z"),
		issueWithStatus(2, "", "2024-01-01T00:00:00Z"),
	}}
	svc := NewExportService(cfg, source, NewCSVProcessor(cfg))
	path := cfg.OutputPath(cfg.StatusPivotCSV)

	require.NoError(t, svc.RunStatusPivot(context.Background()))
	assert.Equal(t, "Issue-ID,Title,State,Created-At,Last-UpdatedAt,Todo\n"+
		"1,Issue title,OPEN,2023-12-01T00:00:00Z,2024-01-01T00:00:00Z,2024-01-01T00:00:00Z\n", readFile(t, path))

	source.graphql = []models.IssueRecord{
		issueWithStatus(2, "Review", "2024-01-03T00:00:00Z"),
		issueWithStatus(1, "In Progress", "2024-01-02T00:00:00Z"),
	}
	require.NoError(t, svc.RunStatusPivot(context.Background()))
	assert.Equal(t, "Issue-ID,Title,State,Created-At,Last-UpdatedAt,Todo,In Progress,Review\n"+
		"1,Issue title,OPEN,2023-12-01T00:00:00Z,2024-01-02T00:00:00Z,2024-01-01T00:00:00Z,2024-01-02T00:00:00Z,\n"+
		"2,Issue title,OPEN,2023-12-01T00:00:00Z,2024-01-03T00:00:00Z,,,2024-01-03T00:00:00Z\n", readFile(t, path))

	// 同じ取得結果で再実行しても変わらない
	before := readFile(t, path)
	require.NoError(t, svc.RunStatusPivot(context.Background()))
	assert.Equal(t, before, readFile(t, path))
}

func TestRunStatusPivotKeepsExistingCreatedAtColumn(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.IncludeCreatedAt = false
	require.NoError(t, os.MkdirAll(cfg.MetricsDir, 0o755))
	path := cfg.OutputPath(cfg.StatusPivotCSV)
	require.NoError(t, os.WriteFile(path, []byte("Issue-ID,Title,State,Created-At,Last-UpdatedAt,Done\n"+
		"9,old,CLOSED,2023-01-01T00:00:00Z,2023-02-01T00:00:00Z,2023-02-01T00:00:00Z\n"), 0o644))

	source := &fakeSource{graphql: []models.IssueRecord{issueWithStatus(1, "Todo", "2024-01-01T00:00:00Z")}}
	svc := NewExportService(cfg, source, NewCSVProcessor(cfg))
	require.NoError(t, svc.RunStatusPivot(context.Background()))

	assert.Equal(t, "Issue-ID,Title,State,Created-At,Last-UpdatedAt,Todo,Done\n"+
		"9,old,CLOSED,2023-01-01T00:00:00Z,2023-02-01T00:00:00Z,,2023-02-01T00:00:00Z\n"+
		"1,Issue title,OPEN,2023-12-01T00:00:00Z,2024-01-01T00:00:00Z,2024-01-01T00:00:00Z,\n", readFile(t, path))
}

func TestRunStatusPivotSourceErrorWritesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	sourceErr := errors.New("boom")
	svc := NewExportService(cfg, &fakeSource{err: sourceErr}, NewCSVProcessor(cfg))

	err := svc.RunStatusPivot(context.Background())

	assert.ErrorIs(t, err, sourceErr)
	_, statErr := os.Stat(cfg.OutputPath(cfg.StatusPivotCSV))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunStatusEvents(t *testing.T) {
	cfg := newTestConfig(t)
	source := &fakeSource{graphql: []models.IssueRecord{
		issueWithStatus(1, "Todo", "2024-01-01T00:00:00Z"),
		issueWithStatus(2, "", "2024-01-01T00:00:00Z"),
	}}
	svc := NewExportService(cfg, source, NewCSVProcessor(cfg))
	path := cfg.OutputPath(cfg.StatusEventsCSV)

	require.NoError(t, svc.RunStatusEvents(context.Background()))

	source.graphql = []models.IssueRecord{
		issueWithStatus(1, "Todo", "2024-01-02T00:00:00Z"),
		issueWithStatus(1, "Done", "2024-01-03T00:00:00Z"),
	}
	require.NoError(t, svc.RunStatusEvents(context.Background()))

	assert.Equal(t, "Issue-ID,Title,Status,Projektstatus,Zeitstempel\n"+
		"1,Issue title,OPEN,Todo,2024-01-01T00:00:00Z\n"+
		"1,Issue title,OPEN,Done,2024-01-03T00:00:00Z\n", readFile(t, path))
}

func TestRunIssueExport(t *testing.T) {
	cfg := newTestConfig(t)
	source := &fakeSource{rest: []models.IssueRecord{
		{ID: 12, Title: "REST issue", State: "closed", UpdatedAt: "2024-03-04T05:06:07Z"},
	}}
	svc := NewExportService(cfg, source, NewCSVProcessor(cfg))

	require.NoError(t, svc.RunIssueExport(context.Background()))

	assert.Equal(t, "Issue-ID,Title,Status,Zeitstempel\n12,REST issue,closed,2024-03-04 05:06:07\n",
		readFile(t, cfg.OutputPath(cfg.IssueExportCSV)))
}

func TestRunProjectStatusExport(t *testing.T) {
	cfg := newTestConfig(t)
	source := &fakeSource{graphql: []models.IssueRecord{
		issueWithStatus(1, "Todo", "2024-01-01T00:00:00Z"),
		issueWithStatus(2, "", "2024-01-02T00:00:00Z"),
	}}
	svc := NewExportService(cfg, source, NewCSVProcessor(cfg))

	require.NoError(t, svc.RunProjectStatusExport(context.Background()))

	assert.Equal(t, "Issue-ID,Title,Status,Projektstatus,Zeitstempel\n"+
		"1,Issue title,OPEN,Todo,2024-01-01T00:00:00Z\n"+
		"2,Issue title,OPEN,,2024-01-02T00:00:00Z\n", readFile(t, cfg.OutputPath(cfg.ProjectStatusCSV)))
}

func TestRunAllStopsOnFirstError(t *testing.T) {
	cfg := newTestConfig(t)
	svc := NewExportService(cfg, &fakeSource{err: errors.New("unauthorized")}, NewCSVProcessor(cfg))

	err := svc.RunAll(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "イシューエクスポート")
	_, statErr := os.Stat(cfg.MetricsDir)
	assert.True(t, os.IsNotExist(statErr))
}
