package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v58/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"issuemetrics/config"
	"issuemetrics/models"
	"issuemetrics/utils"
)

var (
	// ErrSourceQuery はGitHub APIがデータの代わりにエラーを返した場合のエラーです
	ErrSourceQuery = errors.New("GitHub APIクエリエラー")
	// ErrMalformedResponse は成功レスポンスに期待したデータが含まれていない場合のエラーです
	ErrMalformedResponse = errors.New("GitHub APIのレスポンス形式が不正です")
)

// SourceQueryError はAPI呼び出しの失敗を表します
type SourceQueryError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *SourceQueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s に失敗しました (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s に失敗しました: %v", e.Op, e.Err)
}

func (e *SourceQueryError) Unwrap() []error {
	return []error{ErrSourceQuery, e.Err}
}

// AuthResult は認証確認の結果です
type AuthResult struct {
	Login      string
	StatusCode int
}

// GitHubClient はGitHub API (GraphQL / REST) とのやり取りを処理します
type GitHubClient struct {
	config  *config.Config
	graphql *githubv4.Client
	rest    *github.Client
}

// NewGitHubClient は新しいGitHubクライアントを作成します
func NewGitHubClient(ctx context.Context, cfg *config.Config) (*GitHubClient, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(ctx, src)
	return newGitHubClient(cfg, httpClient)
}

func newGitHubClient(cfg *config.Config, httpClient *http.Client) (*GitHubClient, error) {
	rest := github.NewClient(httpClient)
	if cfg.APIURL != "" {
		baseURL, err := url.Parse(cfg.APIURL + "/")
		if err != nil {
			return nil, fmt.Errorf("GITHUB_API_URL が不正です: %w", err)
		}
		rest.BaseURL = baseURL
	}

	var gql *githubv4.Client
	if cfg.GraphQLURL != "" {
		gql = githubv4.NewEnterpriseClient(cfg.GraphQLURL, httpClient)
	} else {
		gql = githubv4.NewClient(httpClient)
	}

	return &GitHubClient{
		config:  cfg,
		graphql: gql,
		rest:    rest,
	}, nil
}

// CheckAuth はトークンでユーザー情報を取得できるか確認します
func (c *GitHubClient) CheckAuth(ctx context.Context) (*AuthResult, error) {
	user, resp, err := c.rest.Users.Get(ctx, "")
	result := &AuthResult{}
	if resp != nil {
		result.StatusCode = resp.StatusCode
	}
	if err != nil {
		return result, &SourceQueryError{Op: "ユーザー情報の取得", StatusCode: result.StatusCode, Err: err}
	}

	result.Login = user.GetLogin()
	return result, nil
}

// ListIssues はREST APIでイシューを最近更新された順に取得します (プルリクエストは除外)
func (c *GitHubClient) ListIssues(ctx context.Context) ([]models.IssueRecord, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: c.config.FetchSize},
	}

	issues, resp, err := c.rest.Issues.ListByRepo(ctx, c.config.Owner, c.config.Repo, opts)
	if err != nil {
		qerr := &SourceQueryError{Op: "イシュー一覧の取得", Err: err}
		if resp != nil {
			qerr.StatusCode = resp.StatusCode
		}
		return nil, qerr
	}

	result := make([]models.IssueRecord, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		if issue.Number == nil {
			return nil, fmt.Errorf("%w: イシュー番号がありません", ErrMalformedResponse)
		}
		result = append(result, models.IssueRecord{
			ID:        issue.GetNumber(),
			Title:     issue.GetTitle(),
			State:     issue.GetState(),
			CreatedAt: formatTime(issue.GetCreatedAt().Time),
			UpdatedAt: formatTime(issue.GetUpdatedAt().Time),
		})
	}

	utils.LogInfo("REST APIからイシューを取得しました: %d 件 (プルリクエスト除外: %d 件)", len(result), len(issues)-len(result))
	return result, nil
}

type fieldRef struct {
	Common struct {
		Name githubv4.String
	} `graphql:"... on ProjectV2FieldCommon"`
}

type fieldValueNode struct {
	Typename     string `graphql:"__typename"`
	SingleSelect struct {
		Name  githubv4.String
		Field fieldRef
	} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	Text struct {
		Text  githubv4.String
		Field fieldRef
	} `graphql:"... on ProjectV2ItemFieldTextValue"`
	Date struct {
		Date  githubv4.String
		Field fieldRef
	} `graphql:"... on ProjectV2ItemFieldDateValue"`
}

type issueNode struct {
	Number       githubv4.Int
	Title        githubv4.String
	State        githubv4.IssueState
	CreatedAt    githubv4.DateTime
	UpdatedAt    githubv4.DateTime
	ProjectItems struct {
		Nodes []struct {
			FieldValues struct {
				Nodes []fieldValueNode
			} `graphql:"fieldValues(first: $fieldValues)"`
		}
	} `graphql:"projectItems(first: $projectItems)"`
}

type issuesQuery struct {
	Repository *struct {
		Issues struct {
			Nodes []issueNode
		} `graphql:"issues(first: $first, orderBy: {field: UPDATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchIssuesWithStatus はGraphQL APIでイシューとプロジェクトのフィールド値を取得します
func (c *GitHubClient) FetchIssuesWithStatus(ctx context.Context) ([]models.IssueRecord, error) {
	var query issuesQuery
	variables := map[string]interface{}{
		"owner":        githubv4.String(c.config.Owner),
		"name":         githubv4.String(c.config.Repo),
		"first":        githubv4.Int(c.config.FetchSize),
		"projectItems": githubv4.Int(c.config.ProjectItemsSize),
		"fieldValues":  githubv4.Int(c.config.FieldValuesSize),
	}

	if err := c.graphql.Query(ctx, &query, variables); err != nil {
		return nil, &SourceQueryError{Op: "GraphQLイシュー取得", Err: err}
	}
	if query.Repository == nil {
		return nil, fmt.Errorf("%w: repository がありません", ErrMalformedResponse)
	}

	nodes := query.Repository.Issues.Nodes
	result := make([]models.IssueRecord, 0, len(nodes))
	for _, node := range nodes {
		record := models.IssueRecord{
			ID:        int(node.Number),
			Title:     string(node.Title),
			State:     string(node.State),
			CreatedAt: formatTime(node.CreatedAt.Time),
			UpdatedAt: formatTime(node.UpdatedAt.Time),
		}
		for _, item := range node.ProjectItems.Nodes {
			values := make([]models.FieldValue, 0, len(item.FieldValues.Nodes))
			for _, fv := range item.FieldValues.Nodes {
				values = append(values, convertFieldValue(fv))
			}
			record.ProjectItems = append(record.ProjectItems, values)
		}
		result = append(result, record)
	}

	utils.LogInfo("GraphQL APIからイシューを取得しました: %d 件", len(result))
	return result, nil
}

// convertFieldValue は型に応じてフィールド値を文字列にします
func convertFieldValue(fv fieldValueNode) models.FieldValue {
	switch fv.Typename {
	case "ProjectV2ItemFieldSingleSelectValue":
		return models.FieldValue{FieldName: string(fv.SingleSelect.Field.Common.Name), Value: string(fv.SingleSelect.Name)}
	case "ProjectV2ItemFieldTextValue":
		return models.FieldValue{FieldName: string(fv.Text.Field.Common.Name), Value: string(fv.Text.Text)}
	case "ProjectV2ItemFieldDateValue":
		return models.FieldValue{FieldName: string(fv.Date.Field.Common.Name), Value: string(fv.Date.Date)}
	}

	// 未対応の型はフィールド名のみ (値なし)
	return models.FieldValue{FieldName: string(fv.SingleSelect.Field.Common.Name)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
