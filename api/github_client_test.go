package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuemetrics/config"
	"issuemetrics/models"
)

const issuesResponse = `{
  "data": {
    "repository": {
      "issues": {
        "nodes": [
          {
            "number": 42,
            "title": "Crash on start",
            "state": "OPEN",
            "createdAt": "2024-01-01T08:00:00Z",
            "updatedAt": "2024-01-02T09:30:00Z",
            "projectItems": {
              "nodes": [
                {
                  "fieldValues": {
                    "nodes": [
                      {"__typename": "ProjectV2ItemFieldTextValue", "text": "notes", "field": {"name": "Notes"}},
                      {"__typename": "ProjectV2ItemFieldSingleSelectValue", "name": "In Progress", "field": {"name": "Status"}},
                      {"__typename": "ProjectV2ItemFieldDateValue", "date": "2024-02-01", "field": {"name": "Due"}},
                      {"__typename": "ProjectV2ItemFieldIterationValue"}
                    ]
                  }
                }
              ]
            }
          },
          {
            "number": 7,
            "title": "No project",
            "state": "CLOSED",
            "createdAt": "2023-05-01T00:00:00Z",
            "updatedAt": "2023-06-01T00:00:00Z",
            "projectItems": {"nodes": []}
          }
        ]
      }
    }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, handler http.Handler) *GitHubClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Owner:            "octo",
		Repo:             "hello",
		APIURL:           server.URL,
		GraphQLURL:       server.URL + "/graphql",
		FetchSize:        50,
		ProjectItemsSize: 5,
		FieldValuesSize:  10,
	}
	client, err := newGitHubClient(cfg, server.Client())
	require.NoError(t, err)
	return client
}

func TestFetchIssuesWithStatus(t *testing.T) {
	var got graphqlRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issuesResponse))
	})
	client := newTestClient(t, mux)

	issues, err := client.FetchIssuesWithStatus(context.Background())

	require.NoError(t, err)
	assert.Contains(t, got.Query, "repository(owner: $owner, name: $name)")
	assert.Contains(t, got.Query, "orderBy: {field: UPDATED_AT, direction: DESC}")
	assert.Equal(t, "octo", got.Variables["owner"])
	assert.Equal(t, "hello", got.Variables["name"])
	assert.EqualValues(t, 50, got.Variables["first"])

	require.Len(t, issues, 2)
	assert.Equal(t, models.IssueRecord{
		ID:        42,
		Title:     "Crash on start",
		State:     "OPEN",
		CreatedAt: "2024-01-01T08:00:00Z",
		UpdatedAt: "2024-01-02T09:30:00Z",
		ProjectItems: [][]models.FieldValue{{
			{FieldName: "Notes", Value: "notes"},
			{FieldName: "Status", Value: "In Progress"},
			{FieldName: "Due", Value: "2024-02-01"},
			{},
		}},
	}, issues[0])
	assert.Equal(t, 7, issues[1].ID)
	assert.Empty(t, issues[1].ProjectItems)
}

func TestFetchIssuesWithStatusQueryError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"repository":null},"errors":[{"message":"Could not resolve to a Repository with the name 'octo/hello'."}]}`))
	}))

	issues, err := client.FetchIssuesWithStatus(context.Background())

	assert.Nil(t, issues)
	assert.ErrorIs(t, err, ErrSourceQuery)
	assert.Contains(t, err.Error(), "Could not resolve")
}

func TestFetchIssuesWithStatusMissingRepository(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"repository":null}}`))
	}))

	_, err := client.FetchIssuesWithStatus(context.Background())

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestListIssues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"number": 3, "title": "Bug", "state": "open", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-05T12:00:00Z"},
			{"number": 4, "title": "PR", "state": "open", "pull_request": {"url": "https://example.com/pr/4"}}
		]`))
	})
	client := newTestClient(t, mux)

	issues, err := client.ListIssues(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.IssueRecord{{
		ID:        3,
		Title:     "Bug",
		State:     "open",
		CreatedAt: "2024-01-01T00:00:00Z",
		UpdatedAt: "2024-01-05T12:00:00Z",
	}}, issues)
}

func TestListIssuesNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))

	_, err := client.ListIssues(context.Background())

	require.ErrorIs(t, err, ErrSourceQuery)
	var qerr *SourceQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, http.StatusNotFound, qerr.StatusCode)
}

func TestCheckAuth(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user", r.URL.Path)
			_, _ = w.Write([]byte(`{"login": "octocat"}`))
		}))

		result, err := client.CheckAuth(context.Background())

		require.NoError(t, err)
		assert.Equal(t, &AuthResult{Login: "octocat", StatusCode: http.StatusOK}, result)
	})

	t.Run("bad credentials", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
		}))

		result, err := client.CheckAuth(context.Background())

		assert.ErrorIs(t, err, ErrSourceQuery)
		assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
		assert.Empty(t, result.Login)
	})
}
