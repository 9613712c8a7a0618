package github

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

func newTestClient(t *testing.T, rootURL string) *Client {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	c, err := NewClient(rootURL, "test-token", httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestNewClientNotConfigured(t *testing.T) {
	tests := []struct {
		name    string
		rootURL string
		token   string
	}{
		{name: "missing token", rootURL: "https://github.com", token: ""},
		{name: "missing root URL", rootURL: "", token: "tok"},
		{name: "missing both", rootURL: "", token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.rootURL, tt.token, nil); !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("err = %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestDeriveURLs(t *testing.T) {
	tests := []struct {
		name       string
		rootURL    string
		wantAPI    string
		wantOrigin string
		wantErr    bool
	}{
		{
			name:       "github.com maps to api.github.com",
			rootURL:    "https://github.com",
			wantAPI:    "https://api.github.com",
			wantOrigin: "https://github.com",
		},
		{
			name:       "api host maps back to github.com origin",
			rootURL:    "https://api.github.com",
			wantAPI:    "https://api.github.com",
			wantOrigin: "https://github.com",
		},
		{
			name:       "enterprise host gets api/v3 suffix",
			rootURL:    "https://ghe.example.com",
			wantAPI:    "https://ghe.example.com/api/v3",
			wantOrigin: "https://ghe.example.com",
		},
		{
			name:    "bare host rejected",
			rootURL: "github.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, origin, err := deriveURLs(tt.rootURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("derive urls: %v", err)
			}
			if diff := cmp.Diff(tt.wantAPI, api); diff != "" {
				t.Errorf("api url mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantOrigin, origin); diff != "" {
				t.Errorf("origin mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListIssueEvents(t *testing.T) {
	c := newTestClient(t, "https://github.com")

	var gotAuth, gotAccept string
	httpmock.RegisterResponder("GET", "https://api.github.com/repos/octocat/hello-world/issues/events",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			gotAccept = req.Header.Get("Accept")
			if diff := cmp.Diff("40", req.URL.Query().Get("per_page")); diff != "" {
				t.Errorf("per_page mismatch (-want +got):\n%s", diff)
			}
			return httpmock.NewStringResponse(200, loadFixture(t, "testdata/issue_events.json")), nil
		})

	events, err := c.ListIssueEvents(context.Background(), "octocat", "hello-world", 40)
	if err != nil {
		t.Fatalf("list issue events: %v", err)
	}

	if diff := cmp.Diff("Bearer test-token", gotAuth); diff != "" {
		t.Errorf("auth header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("application/vnd.github+json", gotAccept); diff != "" {
		t.Errorf("accept header mismatch (-want +got):\n%s", diff)
	}

	want := []IssueEvent{
		{
			ID:        9001,
			Event:     "labeled",
			Actor:     User{Login: "alice"},
			Label:     Label{Name: "good-first-issue"},
			Issue:     IssueSummary{Number: 42, Title: "Fix bug"},
			CreatedAt: time.Date(2024, 5, 10, 11, 58, 0, 0, time.UTC),
		},
		{
			ID:        9002,
			Event:     "mentioned",
			Actor:     User{Login: "bob"},
			Issue:     IssueSummary{Number: 43, Title: "Add docs"},
			CreatedAt: time.Date(2024, 5, 10, 11, 59, 0, 0, time.UTC),
		},
		{
			ID:        9003,
			Event:     "closed",
			Actor:     User{Login: "carol"},
			Issue:     IssueSummary{Number: 44, Title: "Old issue"},
			CreatedAt: time.Date(2024, 5, 10, 11, 59, 30, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestListIssueCommentsSinceParam(t *testing.T) {
	c := newTestClient(t, "https://github.com")
	since := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	var gotSince string
	httpmock.RegisterResponder("GET", "https://api.github.com/repos/octocat/hello-world/issues/comments",
		func(req *http.Request) (*http.Response, error) {
			gotSince = req.URL.Query().Get("since")
			return httpmock.NewStringResponse(200, loadFixture(t, "testdata/issue_comments.json")), nil
		})

	comments, err := c.ListIssueComments(context.Background(), "octocat", "hello-world", since, 30)
	if err != nil {
		t.Fatalf("list issue comments: %v", err)
	}
	if diff := cmp.Diff("2024-05-10T10:00:00Z", gotSince); diff != "" {
		t.Errorf("since param mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, len(comments)); diff != "" {
		t.Errorf("comment count mismatch (-want +got):\n%s", diff)
	}

	// zero since means the param is omitted
	gotSince = "unset"
	if _, err := c.ListIssueComments(context.Background(), "octocat", "hello-world", time.Time{}, 30); err != nil {
		t.Fatalf("list issue comments: %v", err)
	}
	if diff := cmp.Diff("", gotSince); diff != "" {
		t.Errorf("since param mismatch (-want +got):\n%s", diff)
	}
}

func TestEnterpriseBaseURL(t *testing.T) {
	c := newTestClient(t, "https://ghe.example.com")

	httpmock.RegisterResponder("GET", "https://ghe.example.com/api/v3/repos/octocat/hello-world",
		httpmock.NewStringResponder(200, `{"id": 1, "full_name": "octocat/hello-world"}`))

	repo, err := c.GetRepo(context.Background(), "octocat", "hello-world")
	if err != nil {
		t.Fatalf("get repo: %v", err)
	}
	if diff := cmp.Diff("octocat/hello-world", repo.FullName); diff != "" {
		t.Errorf("full name mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://ghe.example.com", c.Origin()); diff != "" {
		t.Errorf("origin mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantUnauth bool
	}{
		{name: "401 is unauthorized", status: 401, wantUnauth: true},
		{name: "403 is unauthorized", status: 403, wantUnauth: true},
		{name: "404 is a status error", status: 404},
		{name: "500 is a status error", status: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "https://github.com")
			httpmock.RegisterResponder("GET", "https://api.github.com/repos/octocat/hello-world/issues/events",
				httpmock.NewStringResponder(tt.status, `{"message": "nope"}`))

			_, err := c.ListIssueEvents(context.Background(), "octocat", "hello-world", 40)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantUnauth {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want StatusError", err)
			}
			if diff := cmp.Diff(tt.status, se.StatusCode); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, "https://github.com")
	httpmock.RegisterResponder("GET", "https://api.github.com/repos/octocat/hello-world/issues/events",
		httpmock.NewStringResponder(200, "not json"))

	if _, err := c.ListIssueEvents(context.Background(), "octocat", "hello-world", 40); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestSearchRepos(t *testing.T) {
	c := newTestClient(t, "https://github.com")
	httpmock.RegisterResponder("GET", "https://api.github.com/search/repositories",
		func(req *http.Request) (*http.Response, error) {
			if diff := cmp.Diff("hello", req.URL.Query().Get("q")); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
			return httpmock.NewStringResponse(200,
				`{"total_count": 1, "items": [{"id": 1, "full_name": "octocat/hello-world"}]}`), nil
		})

	res, err := c.SearchRepos(context.Background(), "hello", 10)
	if err != nil {
		t.Fatalf("search repos: %v", err)
	}
	if diff := cmp.Diff(1, res.TotalCount); diff != "" {
		t.Errorf("total count mismatch (-want +got):\n%s", diff)
	}
}
