package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"issuemetrics/config"
	"issuemetrics/models"
	"issuemetrics/utils"
)

// ErrMissingKeyColumn はCSVにIssue-ID列が存在しない場合のエラーです
var ErrMissingKeyColumn = errors.New("CSVに " + config.ColumnIssueID + " 列が見つかりません")

// ErrEmptyHeaderColumn はヘッダー名が空なのに値を持つ列がある場合のエラーです
var ErrEmptyHeaderColumn = errors.New("ヘッダー名が空の列に値があります")

// CSVProcessor はCSVファイルの読み書きを担当します
type CSVProcessor struct {
	config *config.Config
}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor(cfg *config.Config) *CSVProcessor {
	return &CSVProcessor{
		config: cfg,
	}
}

// LoadTable は前回出力したピボットCSVを読み込みます。
// ファイルが存在しない、または空の場合は空のテーブルを返します
func (p *CSVProcessor) LoadTable(filePath string) (*models.Table, error) {
	table := models.NewTable()

	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		utils.LogInfo("既存のCSV '%s' はありません。新規に作成します", filePath)
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	if len(records) == 0 {
		return table, nil
	}

	headers := records[0]
	idIndex := -1
	for i, header := range headers {
		switch {
		case header == config.ColumnIssueID:
			idIndex = i
		case header == "":
			// 値のある無名列は書き戻せないためエラー
			if columnHasValues(records[1:], i) {
				return nil, fmt.Errorf("%s: %d 列目: %w", filePath, i+1, ErrEmptyHeaderColumn)
			}
			utils.LogWarn("%d 列目のヘッダーが空です。値がないため出力から除外します", i+1)
		case !config.IsReservedColumn(header):
			table.AddStatus(header)
		}
	}
	if idIndex == -1 {
		return nil, fmt.Errorf("%s: %w", filePath, ErrMissingKeyColumn)
	}
	table.Header = headers

	for i, record := range records[1:] {
		if len(record) > len(headers) {
			utils.LogWarn("行 %d: フィールド数がヘッダーより多いため余分な値を無視します（ヘッダー: %d, 行: %d）", i+2, len(headers), len(record))
		}
		if idIndex >= len(record) || record[idIndex] == "" {
			utils.LogWarn("行 %d: %s が空のためスキップします", i+2, config.ColumnIssueID)
			continue
		}

		row := make(models.CSVRecord, len(headers))
		for j, header := range headers {
			if j < len(record) {
				row[header] = record[j]
			} else {
				row[header] = ""
			}
		}
		table.AddRow(record[idIndex], row)
	}

	utils.LogInfo("既存CSVを読み込みました: %d 行, ステータス列 %d 個", table.Len(), len(table.Statuses))
	return table, nil
}

// WriteTable はピボット表を指定された列順でCSVに書き出します (全体を書き換えます)
func (p *CSVProcessor) WriteTable(filePath string, table *models.Table, columns []string) error {
	utils.LogInfo("ピボットCSVファイル '%s' を作成します", filePath)

	err := writeFileAtomic(filePath, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(columns); err != nil {
			return fmt.Errorf("ヘッダー書き込みエラー: %w", err)
		}

		for _, id := range table.Order {
			record := table.Rows[id]
			row := make([]string, len(columns))
			for i, column := range columns {
				row[i] = record[column]
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("行書き込みエラー: %w", err)
			}
		}

		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("CSV書き込み完了エラー: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogInfo("CSV書き込み完了: %d 行, %d 列", table.Len(), len(columns))
	return nil
}

// WriteIssueExport はREST版のイシュー一覧CSVを作成します
func (p *CSVProcessor) WriteIssueExport(filePath string, rows []*models.IssueExportRow) error {
	return p.writeSnapshot(filePath, rows, len(rows))
}

// WriteProjectStatusExport はプロジェクトステータス付きのイシュー一覧CSVを作成します
func (p *CSVProcessor) WriteProjectStatusExport(filePath string, rows []*models.ProjectStatusRow) error {
	return p.writeSnapshot(filePath, rows, len(rows))
}

func (p *CSVProcessor) writeSnapshot(filePath string, rows interface{}, count int) error {
	utils.LogInfo("CSVファイル '%s' を作成します", filePath)

	err := writeFileAtomic(filePath, func(w io.Writer) error {
		if err := gocsv.Marshal(rows, w); err != nil {
			return fmt.Errorf("CSV書き込みエラー: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogInfo("CSV書き込み完了: %d 行", count)
	return nil
}

// LoadStatusEvents はステータスイベントログを読み込みます。
// ファイルが存在しない、または空の場合は空のスライスを返します
func (p *CSVProcessor) LoadStatusEvents(filePath string) ([]*models.ProjectStatusRow, error) {
	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("CSV情報取得エラー: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	var events []*models.ProjectStatusRow
	if err := gocsv.UnmarshalFile(file, &events); err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	utils.LogInfo("ステータスイベントログを読み込みました: %d 件", len(events))
	return events, nil
}

// AppendStatusEvents はステータスイベントをログ末尾に追記します。
// ファイルが新規または空の場合のみヘッダーを書き込みます
func (p *CSVProcessor) AppendStatusEvents(filePath string, events []*models.ProjectStatusRow) error {
	if len(events) == 0 {
		utils.LogInfo("追記するステータスイベントはありません")
		return nil
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("CSV情報取得エラー: %w", err)
	}

	if info.Size() == 0 {
		err = gocsv.Marshal(events, file)
	} else {
		// 末尾が改行でない場合は前の行と連結しないよう改行を補う
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err != nil {
			return fmt.Errorf("CSV読み込みエラー: %w", err)
		}
		if last[0] != '\n' {
			if _, err := file.Write([]byte("\n")); err != nil {
				return fmt.Errorf("CSV追記エラー: %w", err)
			}
		}
		err = gocsv.MarshalWithoutHeaders(events, file)
	}
	if err != nil {
		return fmt.Errorf("CSV追記エラー: %w", err)
	}

	utils.LogInfo("ステータスイベントを追記しました: %d 件", len(events))
	return file.Close()
}

func columnHasValues(records [][]string, index int) bool {
	for _, record := range records {
		if index < len(record) && record[index] != "" {
			return true
		}
	}
	return false
}

// writeFileAtomic は一時ファイルに書き込んでからリネームし、途中までの出力が残らないようにします
func writeFileAtomic(filePath string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("CSVファイルクローズエラー: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("CSVファイル置き換えエラー: %w", err)
	}
	return nil
}
