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

	utils.LogInfo("ステータスピボット更新ツール")

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

	ctx := context.Background()

	// 必要なサービスの初期化
	client, err := api.NewGitHubClient(ctx, cfg)
	if err != nil {
		utils.LogError("GitHubクライアントの初期化に失敗しました: %v", err)
		os.Exit(1)
	}
	csvProc := services.NewCSVProcessor(cfg)
	exportService := services.NewExportService(cfg, client, csvProc)

	utils.LogInfo("リポジトリ: %s (取得件数: %d)", cfg.Repository, cfg.FetchSize)
	if err := exportService.RunStatusPivot(ctx); err != nil {
		utils.LogError("処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 処理時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("処理が完了しました。処理時間: %s", elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
ステータスピボット更新ツール

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
  STATUS_PIVOT_CSV    出力CSVファイル名 (デフォルト: issue_status_pivot.csv)
  STATUS_FIELD        ステータスとして扱うフィールド名 (デフォルト: Status)
  STATUS_TIE_BREAK    同名フィールドが複数ある場合のルール: last / first / reject (デフォルト: last)
  KNOWN_STATUSES      先頭に並べる既知ステータス (デフォルト: Todo,In Progress,Resolved,Done)
  INCLUDE_CREATED_AT  Created-At 列を出力する (デフォルト: true)

説明:
  このツールは既存のピボットCSVを読み込み、最新のイシューをマージして書き戻します。
  イシューごとに1行、ステータスごとに1列を持ち、各ステータス列には
  そのステータスを最初に観測した時刻が記録されます (一度記録した値は上書きされません)。
  プロジェクトステータスのないイシューは出力されません。
`, os.Args[0])
}
