package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"issuemetrics/api"
	"issuemetrics/config"
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

	utils.LogInfo("GitHub認証確認ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// リポジトリ指定は不要なのでトークンのみ確認
	if cfg.Token == "" {
		utils.LogError("%v", config.ErrMissingCredential)
		utils.LogError("GITHUB_TOKEN を環境変数に設定してください。")
		os.Exit(1)
	}

	ctx := context.Background()

	// GitHubクライアントの初期化
	client, err := api.NewGitHubClient(ctx, cfg)
	if err != nil {
		utils.LogError("GitHubクライアントの初期化に失敗しました: %v", err)
		os.Exit(1)
	}

	// 認証チェック
	utils.LogInfo("GitHub APIの認証を確認しています...")
	result, err := client.CheckAuth(ctx)
	if err != nil {
		utils.LogError("GitHub認証エラー (ステータスコード: %d): %v", result.StatusCode, err)
		utils.LogError("認証情報を確認してください。")
		os.Exit(1)
	}

	utils.LogInfo("GitHub認証成功！ ステータスコード: %d, ユーザー: %s", result.StatusCode, result.Login)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
GitHub認証確認ツール

使用方法:
  %s [オプション]

オプション:
  -help               このヘルプを表示する

環境変数:
  GITHUB_TOKEN        GitHubトークン (必須、未設定時は GH_TOKEN を使用)
  GITHUB_API_URL      GitHub Enterprise の REST API URL (任意)

説明:
  このツールはGitHubトークンで GET /user が成功するかを確認します。
  認証が成功すれば、他のツールも正常に動作する可能性が高いです。
`, os.Args[0])
}
