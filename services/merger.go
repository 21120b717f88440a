package services

import (
	"strconv"

	"issuemetrics/config"
	"issuemetrics/models"
	"issuemetrics/utils"
)

// MergeStats はマージ結果の集計です
type MergeStats struct {
	Created        int
	Updated        int
	Skipped        int
	NewStatusCells int
}

// StatusPivotMerger は取得したイシューをステータス別ピボット表にマージします
type StatusPivotMerger struct {
	schema      *config.StatusSchema
	statusField string
	tieBreak    config.TieBreak
}

// NewStatusPivotMerger は新しいマージャーを作成します
func NewStatusPivotMerger(schema *config.StatusSchema, statusField string, tieBreak config.TieBreak) *StatusPivotMerger {
	return &StatusPivotMerger{
		schema:      schema,
		statusField: statusField,
		tieBreak:    tieBreak,
	}
}

// ResolveStatus はイシューのフィールド値からステータスを1つ決定します。
// 見つからない場合、または reject ルールで値が競合した場合は ok=false を返します
func ResolveStatus(issue models.IssueRecord, fieldName string, tieBreak config.TieBreak) (status string, ok bool) {
	for _, item := range issue.ProjectItems {
		for _, fv := range item {
			if fv.FieldName != fieldName || fv.Value == "" {
				continue
			}
			switch {
			case !ok:
				status, ok = fv.Value, true
			case tieBreak == config.TieBreakFirst:
			case tieBreak == config.TieBreakReject:
				if fv.Value != status {
					utils.LogWarn("イシュー #%d: '%s' フィールドの値が競合しています ('%s', '%s')", issue.ID, fieldName, status, fv.Value)
					return "", false
				}
			default:
				status = fv.Value
			}
		}
	}
	return status, ok
}

// Merge は取得したイシューをテーブルに反映します。
// 固定列は常に最新値で上書きし、ステータス列は最初に観測した時刻のみ記録します
func (m *StatusPivotMerger) Merge(table *models.Table, issues []models.IssueRecord) MergeStats {
	var stats MergeStats

	for _, issue := range issues {
		status, ok := ResolveStatus(issue, m.statusField, m.tieBreak)
		if !ok {
			stats.Skipped++
			continue
		}
		if config.IsReservedColumn(status) {
			utils.LogWarn("イシュー #%d: ステータス '%s' は固定列と同名のためスキップします", issue.ID, status)
			stats.Skipped++
			continue
		}

		id := strconv.Itoa(issue.ID)
		row, exists := table.Row(id)
		if !exists {
			row = models.CSVRecord{config.ColumnIssueID: id}
			table.AddRow(id, row)
			stats.Created++
		} else {
			stats.Updated++
		}

		m.applyFixedColumns(row, issue)

		if row[status] == "" {
			row[status] = issue.UpdatedAt
			stats.NewStatusCells++
		}
		table.AddStatus(status)
	}

	return stats
}

// Columns はテーブルの出力列順を返します
func (m *StatusPivotMerger) Columns(table *models.Table) []string {
	return m.schema.Columns(table.Statuses)
}

func (m *StatusPivotMerger) applyFixedColumns(row models.CSVRecord, issue models.IssueRecord) {
	row[config.ColumnTitle] = issue.Title
	row[config.ColumnState] = issue.State
	row[config.ColumnUpdatedAt] = issue.UpdatedAt
	if m.schema.IsFixedColumn(config.ColumnCreatedAt) {
		row[config.ColumnCreatedAt] = issue.CreatedAt
	}
}
