package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the subset of github.com and api.github.com the client uses.
type fakeGitHub struct {
	*httptest.Server
	tokenCalls atomic.Int32
	tokenBody  string
	userStatus int
	lastForm   url.Values
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_test","token_type":"bearer","scope":"read:user,public_repo"}`,
		userStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		_ = r.ParseForm()
		f.lastForm = r.PostForm
		if r.Header.Get("Accept") != "application/json" {
			http.Error(w, "want json", http.StatusNotAcceptable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("GET /api/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userStatus)
		_, _ = w.Write([]byte(`{
			"id": 583231, "login": "octocat", "name": "The Octocat", "bio": "hi",
			"avatar_url": "https://avatars.githubusercontent.com/u/583231",
			"location": "San Francisco", "email": null,
			"followers": 10, "following": 2, "public_repos": 8, "public_gists": 3,
			"created_at": "2011-01-25T18:44:36Z", "html_url": "https://github.com/octocat"
		}`))
	})
	mux.HandleFunc("GET /api/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		q := r.URL.Query()
		if q.Get("sort") != "updated" {
			http.Error(w, "sort", http.StatusBadRequest)
			return
		}
		page := q.Get("page")
		base := "http://" + r.Host + "/api/user/repos?per_page=" + q.Get("per_page") + "&sort=updated"
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s&page=3>; rel="next", <%s&page=5>; rel="last", <%s&page=1>; rel="first"`, base, base, base))
		case "1":
			if q.Get("per_page") == "4" {
				w.Header().Set("Link", fmt.Sprintf(`<%s&page=2>; rel="next", <%s&page=5>; rel="last"`, base, base))
			}
		case "9":
			w.Header().Set("Link", fmt.Sprintf(`<%s&page=8>; rel="prev", <%s&page=1>; rel="first"`, base, base))
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "A", "stargazers_count": 3, "updated_at": "2024-01-01T00:00:00Z"},
			{"id": 2, "name": "B", "stargazers_count": 1, "language": "Go"},
			{"id": 3, "name": "C", "stargazers_count": 3},
			{"id": 4, "name": "D", "stargazers_count": 2, "forks_count": 7},
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeGitHub) *GitHub {
	t.Helper()
	g, err := NewGitHub(Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://relay.example/auth/github/callback",
		WebURL:       f.URL,
		APIURL:       f.URL + "/api",
		HTTPClient:   f.Client(),
	})
	require.NoError(t, err)
	return g
}

func TestNewGitHubRequiresCredentials(t *testing.T) {
	_, err := NewGitHub(Options{ClientID: "id"})
	assert.Error(t, err)
}

func TestAuthorizeURL(t *testing.T) {
	g, err := NewGitHub(Options{ClientID: "cid", ClientSecret: "sec", RedirectURI: "https://relay.example/cb"})
	require.NoError(t, err)

	u, err := url.Parse(g.AuthorizeURL("st4te"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "/login/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "https://relay.example/cb", q.Get("redirect_uri"))
	assert.Equal(t, "read:user public_repo", q.Get("scope"))
	assert.Empty(t, q.Get("client_secret"))
}

func TestExchangeCode(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	tok, err := g.ExchangeCode(context.Background(), "abc123", "")
	require.NoError(t, err)
	assert.Equal(t, "gho_test", tok)
	assert.EqualValues(t, 1, f.tokenCalls.Load())

	assert.Equal(t, "abc123", f.lastForm.Get("code"))
	assert.Equal(t, "client-id", f.lastForm.Get("client_id"))
	assert.Equal(t, "client-secret", f.lastForm.Get("client_secret"))
	assert.Equal(t, "https://relay.example/auth/github/callback", f.lastForm.Get("redirect_uri"))
}

func TestExchangeCodeRedirectOverride(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	_, err := g.ExchangeCode(context.Background(), "abc123", "https://other.example/cb")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/cb", f.lastForm.Get("redirect_uri"))
}

func TestExchangeCodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		calls int32
	}{
		{name: "error field", body: `{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`, code: "used", calls: 1},
		{name: "missing access token", body: `{"token_type":"bearer"}`, code: "abc", calls: 1},
		{name: "empty code", code: "", calls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGitHub(t)
			if tt.body != "" {
				f.tokenBody = tt.body
			}
			g := newTestClient(t, f)

			tok, err := g.ExchangeCode(context.Background(), tt.code, "")
			assert.ErrorIs(t, err, ErrExchangeFailed)
			assert.Empty(t, tok)
			assert.Equal(t, tt.calls, f.tokenCalls.Load())
		})
	}
}

func TestFetchProfile(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	p, err := g.FetchProfile(context.Background(), "gho_test")
	require.NoError(t, err)
	assert.Equal(t, int64(583231), p.ID)
	assert.Equal(t, "octocat", p.Login)
	assert.Equal(t, "The Octocat", p.Name)
	assert.Equal(t, "San Francisco", p.Location)
	assert.Empty(t, p.Email)
	assert.Equal(t, 8, p.PublicRepos)
	assert.Equal(t, 3, p.PublicGists)
	assert.Equal(t, time.Date(2011, 1, 25, 18, 44, 36, 0, time.UTC), p.CreatedAt.UTC())
}

func TestFetchProfileFailures(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	_, err := g.FetchProfile(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrFetchFailed)

	f.userStatus = http.StatusInternalServerError
	_, err = g.FetchProfile(context.Background(), "gho_test")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestListRepositoriesPagination(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	repos, page, err := g.ListRepositories(context.Background(), "gho_test", 2, 4)
	require.NoError(t, err)
	require.Len(t, repos, 4)
	assert.Equal(t, &core.Pagination{Page: 2, PerPage: 4, Total: 5, HasNext: true}, page)
	assert.Equal(t, "Go", repos[1].Language)
	assert.Equal(t, 7, repos[3].ForksCount)

	_, page, err = g.ListRepositories(context.Background(), "gho_test", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, &core.Pagination{Page: 1, PerPage: DefaultPerPage, Total: 1}, page)
}

func TestListRepositoriesPastLastPage(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	repos, page, err := g.ListRepositories(context.Background(), "gho_test", 9, 4)
	require.NoError(t, err)
	assert.Empty(t, repos)
	assert.NotNil(t, repos)
	assert.Equal(t, &core.Pagination{Page: 9, PerPage: 4, Total: 5}, page)
}

func TestListRepositoriesUnauthorized(t *testing.T) {
	f := newFakeGitHub(t)
	g := newTestClient(t, f)

	_, _, err := g.ListRepositories(context.Background(), "revoked", 1, 10)
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestSortByStars(t *testing.T) {
	repos := []core.RepositorySummary{
		{Name: "A", StargazersCount: 3},
		{Name: "B", StargazersCount: 1},
		{Name: "C", StargazersCount: 3},
		{Name: "D", StargazersCount: 2},
	}
	SortByStars(repos)

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	assert.Equal(t, "A,C,D,B", strings.Join(names, ","))
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, DefaultPerPage},
		{-3, 10, 1, 10},
		{4, 500, 4, MaxPerPage},
		{2, 100, 2, 100},
	}
	for _, tt := range tests {
		p, pp := NormalizePage(tt.page, tt.perPage)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantPerPage, pp)
	}
}
