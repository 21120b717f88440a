package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"issuemetrics/config"
	"issuemetrics/models"
	"issuemetrics/utils"
)

// IssueSource はイシューの取得元です
type IssueSource interface {
	ListIssues(ctx context.Context) ([]models.IssueRecord, error)
	FetchIssuesWithStatus(ctx context.Context) ([]models.IssueRecord, error)
}

// REST版エクスポートのタイムスタンプ形式
const exportTimestampLayout = "2006-01-02 15:04:05"

// ExportService はGitHubイシューのCSVエクスポートを処理します
type ExportService struct {
	config  *config.Config
	source  IssueSource
	csvProc *CSVProcessor
}

// NewExportService は新しいエクスポートサービスを作成します
func NewExportService(cfg *config.Config, source IssueSource, csvProc *CSVProcessor) *ExportService {
	return &ExportService{
		config:  cfg,
		source:  source,
		csvProc: csvProc,
	}
}

func (e *ExportService) prepareOutputDir() error {
	if err := os.MkdirAll(e.config.MetricsDir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリ作成エラー: %w", err)
	}
	return nil
}

// RunIssueExport はREST APIで取得したイシュー一覧をCSVに保存します
func (e *ExportService) RunIssueExport(ctx context.Context) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "イシューエクスポート")

	issues, err := e.source.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("イシュー取得エラー: %w", err)
	}

	rows := make([]*models.IssueExportRow, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, &models.IssueExportRow{
			IssueID:   issue.ID,
			Title:     issue.Title,
			Status:    issue.State,
			Timestamp: reformatTimestamp(issue.UpdatedAt),
		})
	}

	if err := e.prepareOutputDir(); err != nil {
		return err
	}
	path := e.config.OutputPath(e.config.IssueExportCSV)
	if err := e.csvProc.WriteIssueExport(path, rows); err != nil {
		return fmt.Errorf("CSV書き込みエラー: %w", err)
	}

	utils.LogInfo("イシューのステータスメトリクスを保存しました: %s", path)
	return nil
}

// RunProjectStatusExport はプロジェクトステータス付きのイシュー一覧をCSVに保存します
func (e *ExportService) RunProjectStatusExport(ctx context.Context) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "プロジェクトステータスエクスポート")

	issues, err := e.source.FetchIssuesWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("イシュー取得エラー: %w", err)
	}

	rows := make([]*models.ProjectStatusRow, 0, len(issues))
	for _, issue := range issues {
		// ステータスがない場合は空欄
		status, _ := ResolveStatus(issue, e.config.StatusField, e.config.TieBreak)
		rows = append(rows, &models.ProjectStatusRow{
			IssueID:       issue.ID,
			Title:         issue.Title,
			Status:        issue.State,
			ProjectStatus: status,
			Timestamp:     issue.UpdatedAt,
		})
	}

	if err := e.prepareOutputDir(); err != nil {
		return err
	}
	path := e.config.OutputPath(e.config.ProjectStatusCSV)
	if err := e.csvProc.WriteProjectStatusExport(path, rows); err != nil {
		return fmt.Errorf("CSV書き込みエラー: %w", err)
	}

	utils.LogInfo("プロジェクトステータスを保存しました: %s", path)
	return nil
}

// RunStatusPivot は既存のピボットCSVに最新のイシューをマージして書き戻します
func (e *ExportService) RunStatusPivot(ctx context.Context) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "ステータスピボット更新")

	issues, err := e.source.FetchIssuesWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("イシュー取得エラー: %w", err)
	}

	if err := e.prepareOutputDir(); err != nil {
		return err
	}
	path := e.config.OutputPath(e.config.StatusPivotCSV)
	table, err := e.csvProc.LoadTable(path)
	if err != nil {
		return fmt.Errorf("既存CSV読み込みエラー: %w", err)
	}

	schema := e.config.Schema()
	if !schema.IsFixedColumn(config.ColumnCreatedAt) && table.HasColumn(config.ColumnCreatedAt) {
		// 既存の列は削除しない
		utils.LogWarn("既存CSVに %s 列があるため保持します", config.ColumnCreatedAt)
		schema = config.NewStatusSchema(e.config.KnownStatuses, true)
	}

	merger := NewStatusPivotMerger(schema, e.config.StatusField, e.config.TieBreak)
	stats := merger.Merge(table, issues)
	utils.LogInfo("マージ完了: 新規=%d, 更新=%d, スキップ=%d, 新規ステータス記録=%d",
		stats.Created, stats.Updated, stats.Skipped, stats.NewStatusCells)

	if err := e.csvProc.WriteTable(path, table, merger.Columns(table)); err != nil {
		return fmt.Errorf("CSV書き込みエラー: %w", err)
	}

	utils.LogInfo("ステータスピボットを保存しました: %s", path)
	return nil
}

// RunStatusEvents は未記録の (イシュー, ステータス) の組をイベントログに追記します
func (e *ExportService) RunStatusEvents(ctx context.Context) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "ステータスイベント追記")

	issues, err := e.source.FetchIssuesWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("イシュー取得エラー: %w", err)
	}

	if err := e.prepareOutputDir(); err != nil {
		return err
	}
	path := e.config.OutputPath(e.config.StatusEventsCSV)
	existing, err := e.csvProc.LoadStatusEvents(path)
	if err != nil {
		return fmt.Errorf("既存イベントログ読み込みエラー: %w", err)
	}

	events := NewStatusEvents(existing, issues, e.config.StatusField, e.config.TieBreak)
	if err := e.csvProc.AppendStatusEvents(path, events); err != nil {
		return fmt.Errorf("イベントログ書き込みエラー: %w", err)
	}

	utils.LogInfo("ステータスイベントログを更新しました: %s", path)
	return nil
}

// NewStatusEvents は既存ログにない (イシュー, ステータス) の組だけをイベントとして返します
func NewStatusEvents(existing []*models.ProjectStatusRow, issues []models.IssueRecord, statusField string, tieBreak config.TieBreak) []*models.ProjectStatusRow {
	seen := make(map[string]struct{}, len(existing))
	for _, ev := range existing {
		seen[eventKey(ev.IssueID, ev.ProjectStatus)] = struct{}{}
	}

	var events []*models.ProjectStatusRow
	for _, issue := range issues {
		status, ok := ResolveStatus(issue, statusField, tieBreak)
		if !ok {
			continue
		}
		key := eventKey(issue.ID, status)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		events = append(events, &models.ProjectStatusRow{
			IssueID:       issue.ID,
			Title:         issue.Title,
			Status:        issue.State,
			ProjectStatus: status,
			Timestamp:     issue.UpdatedAt,
		})
	}
	return events
}

func eventKey(id int, status string) string {
	return strconv.Itoa(id) + "\x00" + status
}

// ISO 8601の時刻をエクスポート用の形式に変換
func reformatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format(exportTimestampLayout)
}

// RunAll はすべてのエクスポートを順に実行します。いずれかが失敗した時点で中断します
func (e *ExportService) RunAll(ctx context.Context) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "エクスポート全体")

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"イシューエクスポート", e.RunIssueExport},
		{"プロジェクトステータスエクスポート", e.RunProjectStatusExport},
		{"ステータスピボット更新", e.RunStatusPivot},
		{"ステータスイベント追記", e.RunStatusEvents},
	}

	for _, step := range steps {
		utils.LogInfo("%s を開始します", step.name)
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	utils.LogInfo("すべてのエクスポートが完了しました")
	return nil
}
