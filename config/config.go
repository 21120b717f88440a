package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingCredential はGitHubトークンが設定されていない場合のエラーです
	ErrMissingCredential = errors.New("GitHubトークンが設定されていません (GITHUB_TOKEN または GH_TOKEN)")
	// ErrInvalidRepository はリポジトリ指定が owner/name 形式でない場合のエラーです
	ErrInvalidRepository = errors.New("GITHUB_REPOSITORY は owner/name 形式で指定してください")
)

// TieBreak は同名のステータスフィールドが複数見つかった場合の解決ルールです
type TieBreak string

const (
	// TieBreakLast は最後に見つかった値を採用します (デフォルト)
	TieBreakLast TieBreak = "last"
	// TieBreakFirst は最初に見つかった値を採用します
	TieBreakFirst TieBreak = "first"
	// TieBreakReject は異なる値が複数ある場合にステータスなしとして扱います
	TieBreakReject TieBreak = "reject"
)

// 取得件数の上限 (GitHub APIの1ページ最大値)
const maxFetchSize = 100

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// GitHub API設定
	Token      string
	Owner      string
	Repo       string
	Repository string
	APIURL     string
	GraphQLURL string

	// ファイルパス
	MetricsDir       string
	IssueExportCSV   string
	ProjectStatusCSV string
	StatusPivotCSV   string
	StatusEventsCSV  string

	// 取得件数
	FetchSize        int
	ProjectItemsSize int
	FieldValuesSize  int

	// ステータス設定
	StatusField      string
	TieBreak         TieBreak
	KnownStatuses    []string
	IncludeCreatedAt bool
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}

	config := &Config{
		Token:            token,
		Repository:       os.Getenv("GITHUB_REPOSITORY"),
		APIURL:           strings.TrimRight(os.Getenv("GITHUB_API_URL"), "/"),
		GraphQLURL:       strings.TrimRight(os.Getenv("GITHUB_GRAPHQL_URL"), "/"),
		MetricsDir:       getEnvWithDefault("METRICS_DIR", "Prozessmetriken"),
		IssueExportCSV:   getEnvWithDefault("ISSUE_EXPORT_CSV", "issue_status_metrics.csv"),
		ProjectStatusCSV: getEnvWithDefault("PROJECT_STATUS_CSV", "issue_project_status.csv"),
		StatusPivotCSV:   getEnvWithDefault("STATUS_PIVOT_CSV", "issue_status_pivot.csv"),
		StatusEventsCSV:  getEnvWithDefault("STATUS_EVENTS_CSV", "issue_status_events.csv"),
		FetchSize:        clamp(getEnvAsIntWithDefault("FETCH_SIZE", 50), 1, maxFetchSize),
		ProjectItemsSize: clamp(getEnvAsIntWithDefault("PROJECT_ITEMS_SIZE", 5), 1, maxFetchSize),
		FieldValuesSize:  clamp(getEnvAsIntWithDefault("FIELD_VALUES_SIZE", 10), 1, maxFetchSize),
		StatusField:      getEnvWithDefault("STATUS_FIELD", "Status"),
		TieBreak:         TieBreak(strings.ToLower(getEnvWithDefault("STATUS_TIE_BREAK", string(TieBreakLast)))),
		KnownStatuses:    splitList(getEnvWithDefault("KNOWN_STATUSES", strings.Join(DefaultKnownStatuses, ","))),
		IncludeCreatedAt: getEnvAsBoolWithDefault("INCLUDE_CREATED_AT", true),
	}

	switch config.TieBreak {
	case TieBreakLast, TieBreakFirst, TieBreakReject:
	default:
		return nil, fmt.Errorf("STATUS_TIE_BREAK の値が不正です: %q (last, first, reject)", config.TieBreak)
	}

	// GraphQLエンドポイントは未指定ならREST URLから導出 (GHE: /api/v3 → /api/graphql)
	if config.GraphQLURL == "" && config.APIURL != "" {
		config.GraphQLURL = strings.TrimSuffix(config.APIURL, "/v3") + "/graphql"
	}

	if owner, repo, ok := strings.Cut(config.Repository, "/"); ok {
		config.Owner = owner
		config.Repo = repo
	}

	return config, nil
}

// Validate は実行に必要な設定が揃っているか確認します
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingCredential
	}
	if c.Owner == "" || c.Repo == "" || strings.Contains(c.Repo, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidRepository, c.Repository)
	}
	return nil
}

// OutputPath はメトリクスディレクトリ配下のファイルパスを返します
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.MetricsDir, name)
}

// Schema は設定からピボット表のスキーマを組み立てます
func (c *Config) Schema() *StatusSchema {
	return NewStatusSchema(c.KnownStatuses, c.IncludeCreatedAt)
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を整数として取得
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
