package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"issuemetrics/api"
	"issuemetrics/config"
	"issuemetrics/services"
	"issuemetrics/utils"
)

func main() {
	// ヘルプフラグの定義
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}

	utils.LogInfo("GitHub イシューメトリクス出力ツール (v1.0.0)")
	utils.LogInfo("設定読み込み完了 (リポジトリ: %s, 取得件数: %d, 出力先: %s)", cfg.Repository, cfg.FetchSize, cfg.MetricsDir)

	ctx := context.Background()

	// 必要なサービスの初期化
	client, err := api.NewGitHubClient(ctx, cfg)
	if err != nil {
		utils.LogError("GitHubクライアントの初期化に失敗しました: %v", err)
		os.Exit(1)
	}
	csvProc := services.NewCSVProcessor(cfg)
	exportService := services.NewExportService(cfg, client, csvProc)

	// GitHub認証チェック (失敗しても続行し、取得時のエラーで判断する)
	logAuthStatus(ctx, client)

	// エクスポートの実行
	if err := exportService.RunAll(ctx); err != nil {
		utils.LogError("エクスポート処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 合計実行時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("エクスポート処理が完了しました。合計実行時間: %s", elapsed)
}

type authChecker interface {
	CheckAuth(ctx context.Context) (*api.AuthResult, error)
}

// logAuthStatus は GET /user の結果をログに出します。
// GitHub Actions のトークンは /user にアクセスできないため、失敗は警告に留めます
func logAuthStatus(ctx context.Context, client authChecker) bool {
	result, err := client.CheckAuth(ctx)
	if err != nil {
		utils.LogWarn("GitHubユーザー情報を取得できませんでした。処理は続行します: %v", err)
		return false
	}
	utils.LogInfo("GitHub認証成功 (ユーザー: %s)", result.Login)
	return true
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
GitHub イシューメトリクス出力ツール

使用方法:
  %s [オプション]

オプション:
  -help               このヘルプを表示する

環境変数:
  GITHUB_TOKEN        GitHubトークン (必須、未設定時は GH_TOKEN を使用)
  GITHUB_REPOSITORY   対象リポジトリ owner/name (必須)
  GITHUB_API_URL      GitHub Enterprise の REST API URL (任意)
  GITHUB_GRAPHQL_URL  GitHub Enterprise の GraphQL URL (任意)
  METRICS_DIR         出力ディレクトリ (デフォルト: Prozessmetriken)
  FETCH_SIZE          取得するイシュー数 (デフォルト: 50, 最大: 100)
  PROJECT_ITEMS_SIZE  イシューごとのプロジェクトアイテム取得数 (デフォルト: 5)
  FIELD_VALUES_SIZE   アイテムごとのフィールド値取得数 (デフォルト: 10)
  STATUS_FIELD        ステータスとして扱うフィールド名 (デフォルト: Status)
  STATUS_TIE_BREAK    同名フィールドが複数ある場合のルール: last / first / reject (デフォルト: last)
  KNOWN_STATUSES      先頭に並べる既知ステータス (デフォルト: Todo,In Progress,Resolved,Done)
  INCLUDE_CREATED_AT  ピボットCSVに Created-At 列を出力する (デフォルト: true)
  ISSUE_EXPORT_CSV    イシュー一覧CSV (デフォルト: issue_status_metrics.csv)
  PROJECT_STATUS_CSV  プロジェクトステータスCSV (デフォルト: issue_project_status.csv)
  STATUS_PIVOT_CSV    ステータスピボットCSV (デフォルト: issue_status_pivot.csv)
  STATUS_EVENTS_CSV   ステータスイベントログCSV (デフォルト: issue_status_events.csv)

説明:
  認証確認 (失敗時は警告のみ) のあと、イシュー一覧・プロジェクトステータス・ステータスピボット・
  ステータスイベントログの4種類のCSVを順に出力します。
  個別に実行する場合は各ツール (issue_export, project_status_export,
  status_pivot, status_events) を使用してください。
`, os.Args[0])
}
