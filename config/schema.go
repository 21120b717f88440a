package config

import "sort"

// SchemaVersion はピボットCSVの列構成のバージョンです
const SchemaVersion = 1

// ピボットCSVの固定列
const (
	ColumnIssueID   = "Issue-ID"
	ColumnTitle     = "Title"
	ColumnState     = "State"
	ColumnCreatedAt = "Created-At"
	ColumnUpdatedAt = "Last-UpdatedAt"
)

var reservedColumns = map[string]struct{}{
	ColumnIssueID:   {},
	ColumnTitle:     {},
	ColumnState:     {},
	ColumnCreatedAt: {},
	ColumnUpdatedAt: {},
}

// IsReservedColumn は列名が固定列として予約されているかどうかを返します。
// Created-At を出力しない設定でも予約名として扱います
func IsReservedColumn(name string) bool {
	_, ok := reservedColumns[name]
	return ok
}

// DefaultKnownStatuses はプロジェクトボードの既知ステータスです (この順で先頭に並びます)
var DefaultKnownStatuses = []string{"Todo", "In Progress", "Resolved", "Done"}

// StatusSchema はピボットCSVの列構成を定義します。
// 固定列のあとに既知ステータスを宣言順で並べ、未知のステータスは辞書順で末尾に追加します。
type StatusSchema struct {
	Version       int
	FixedColumns  []string
	KnownStatuses []string

	fixed map[string]struct{}
	rank  map[string]int
}

// NewStatusSchema は新しいスキーマを作成します
func NewStatusSchema(knownStatuses []string, includeCreatedAt bool) *StatusSchema {
	fixedColumns := []string{ColumnIssueID, ColumnTitle, ColumnState}
	if includeCreatedAt {
		fixedColumns = append(fixedColumns, ColumnCreatedAt)
	}
	fixedColumns = append(fixedColumns, ColumnUpdatedAt)

	s := &StatusSchema{
		Version:      SchemaVersion,
		FixedColumns: fixedColumns,
		fixed:        make(map[string]struct{}, len(fixedColumns)),
		rank:         make(map[string]int, len(knownStatuses)),
	}
	for _, col := range fixedColumns {
		s.fixed[col] = struct{}{}
	}
	for _, status := range knownStatuses {
		if _, dup := s.rank[status]; dup {
			continue
		}
		s.rank[status] = len(s.KnownStatuses)
		s.KnownStatuses = append(s.KnownStatuses, status)
	}
	return s
}

// IsFixedColumn は列名が固定列かどうかを返します
func (s *StatusSchema) IsFixedColumn(name string) bool {
	_, ok := s.fixed[name]
	return ok
}

// IsKnownStatus はステータスが宣言済みかどうかを返します
func (s *StatusSchema) IsKnownStatus(status string) bool {
	_, ok := s.rank[status]
	return ok
}

// Columns は観測されたステータス集合から出力列の順序を決定します
func (s *StatusSchema) Columns(statuses map[string]struct{}) []string {
	dynamic := make([]string, 0, len(statuses))
	for status := range statuses {
		if IsReservedColumn(status) {
			continue
		}
		dynamic = append(dynamic, status)
	}

	sort.Slice(dynamic, func(i, j int) bool {
		ri, iKnown := s.rank[dynamic[i]]
		rj, jKnown := s.rank[dynamic[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return dynamic[i] < dynamic[j]
		}
	})

	columns := make([]string, 0, len(s.FixedColumns)+len(dynamic))
	columns = append(columns, s.FixedColumns...)
	return append(columns, dynamic...)
}
