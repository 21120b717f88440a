package models

// IssueRecord はGitHubから取得したイシュー1件を表します
type IssueRecord struct {
	ID        int
	Title     string
	State     string // OPEN / CLOSED
	CreatedAt string // ISO 8601
	UpdatedAt string // ISO 8601

	// プロジェクトアイテムごとのフィールド値 (取得順)
	ProjectItems [][]FieldValue
}

// FieldValue はプロジェクトのカスタムフィールド値1件を表します
type FieldValue struct {
	FieldName string
	Value     string
}

// CSVRecord はCSVの1行を表します (ヘッダー名→値のマップ)
type CSVRecord map[string]string

// Table はIssue-IDをキーにしたピボット表です。
// 行の順序は読み込み順、その後に新規追加順を保持します。
// ゼロ値もそのまま使えます。
type Table struct {
	Rows     map[string]CSVRecord
	Order    []string
	Statuses map[string]struct{}

	// 読み込んだファイルのヘッダー (新規テーブルでは空)
	Header []string
}

// NewTable は空のテーブルを作成します
func NewTable() *Table {
	return &Table{
		Rows:     make(map[string]CSVRecord),
		Statuses: make(map[string]struct{}),
	}
}

// Row は指定IDの行を返します
func (t *Table) Row(id string) (CSVRecord, bool) {
	row, ok := t.Rows[id]
	return row, ok
}

// AddRow は行を末尾に追加します。既存IDの場合は置き換えのみで順序は変わりません
func (t *Table) AddRow(id string, row CSVRecord) {
	if t.Rows == nil {
		t.Rows = make(map[string]CSVRecord)
	}
	if _, ok := t.Rows[id]; !ok {
		t.Order = append(t.Order, id)
	}
	t.Rows[id] = row
}

// AddStatus はステータス列を登録します
func (t *Table) AddStatus(status string) {
	if t.Statuses == nil {
		t.Statuses = make(map[string]struct{})
	}
	t.Statuses[status] = struct{}{}
}

// HasColumn は読み込み時のヘッダーに列が含まれていたかどうかを返します
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Header {
		if col == name {
			return true
		}
	}
	return false
}

// Len は行数を返します
func (t *Table) Len() int {
	return len(t.Order)
}

// IssueExportRow はREST版エクスポートの1行です
type IssueExportRow struct {
	IssueID   int    `csv:"Issue-ID"`
	Title     string `csv:"Title"`
	Status    string `csv:"Status"`
	Timestamp string `csv:"Zeitstempel"`
}

// ProjectStatusRow はプロジェクトステータス付きエクスポートの1行です。
// ステータスイベントログも同じ列構成を使います
type ProjectStatusRow struct {
	IssueID       int    `csv:"Issue-ID"`
	Title         string `csv:"Title"`
	Status        string `csv:"Status"`
	ProjectStatus string `csv:"Projektstatus"`
	Timestamp     string `csv:"Zeitstempel"`
}
