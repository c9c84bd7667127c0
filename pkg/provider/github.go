// Package provider talks to GitHub: code exchange, profile fetch and
// repository listing.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	// DefaultWebURL is the GitHub host serving the authorize and token endpoints.
	DefaultWebURL = "https://github.com"
	// DefaultAPIURL is the GitHub REST API base URL.
	DefaultAPIURL = "https://api.github.com/"
	// DefaultPerPage is used when a listing is requested without a page size.
	DefaultPerPage = 30
	// MaxPerPage is the largest page size GitHub accepts.
	MaxPerPage = 100

	requestTimeout = 10 * time.Second
)

// DefaultScopes are requested on the authorize redirect.
var DefaultScopes = []string{"read:user", "public_repo"}

var (
	// ErrExchangeFailed is returned when the code could not be traded for a token.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrFetchFailed is returned when a GitHub API read fails.
	ErrFetchFailed = errors.New("github api request failed")
)

// Options configures a GitHub client.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// WebURL hosts /login/oauth/*; override for GitHub Enterprise or tests.
	WebURL string
	// APIURL is the REST base URL, with a trailing slash.
	APIURL  string
	Timeout time.Duration
	// HTTPClient overrides the outbound client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// GitHub is a thin client over the GitHub OAuth and REST endpoints.
// It holds no per-user state and is safe for concurrent use.
type GitHub struct {
	config     *oauth2.Config
	httpClient *http.Client
	apiURL     *url.URL
}

// NewGitHub builds a GitHub client from opts.
func NewGitHub(opts Options) (*GitHub, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, errors.New("github client id and secret are required")
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	apiRaw := opts.APIURL
	if apiRaw == "" {
		apiRaw = DefaultAPIURL
	}
	if !strings.HasSuffix(apiRaw, "/") {
		apiRaw += "/"
	}
	apiURL, err := url.Parse(apiRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// GitHub answers the token endpoint form-encoded unless JSON is asked for.
	httpClient = withAcceptJSON(httpClient)

	return &GitHub{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpointFor(opts.WebURL),
		},
		httpClient: httpClient,
		apiURL:     apiURL,
	}, nil
}

func endpointFor(webURL string) oauth2.Endpoint {
	webURL = strings.TrimRight(webURL, "/")
	if webURL == "" || webURL == DefaultWebURL {
		ep := endpoints.GitHub
		ep.AuthStyle = oauth2.AuthStyleInParams
		return ep
	}
	return oauth2.Endpoint{
		AuthURL:   webURL + "/login/oauth/authorize",
		TokenURL:  webURL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// AuthorizeURL returns the GitHub authorize URL carrying state.
func (g *GitHub) AuthorizeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// ExchangeCode trades a one-time authorization code for an access token.
// The code is sent once; callers must not retry with the same code.
// A non-empty redirectURI overrides the configured one.
func (g *GitHub) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrExchangeFailed)
	}

	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := g.config.Exchange(ctx, code, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: response missing access_token", ErrExchangeFailed)
	}
	return tok.AccessToken, nil
}

// FetchProfile reads the authenticated user's profile.
func (g *GitHub) FetchProfile(ctx context.Context, token string) (*core.ProfileSnapshot, error) {
	user, _, err := g.client(token).Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %w", ErrFetchFailed, err)
	}

	return &core.ProfileSnapshot{
		ID:          user.GetID(),
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		Bio:         user.GetBio(),
		AvatarURL:   user.GetAvatarURL(),
		Location:    user.GetLocation(),
		Email:       user.GetEmail(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		CreatedAt:   user.GetCreatedAt().Time,
		PublicRepos: user.GetPublicRepos(),
		PublicGists: user.GetPublicGists(),
		HTMLURL:     user.GetHTMLURL(),
	}, nil
}

// ListRepositories returns one page of the user's repositories, most recently
// updated first as GitHub orders them, with pagination taken from the Link header.
func (g *GitHub) ListRepositories(ctx context.Context, token string, page, perPage int) ([]core.RepositorySummary, *core.Pagination, error) {
	page, perPage = NormalizePage(page, perPage)
	client := g.client(token)
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list repositories: %w", ErrFetchFailed, err)
	}

	// A page past the end comes back empty without a "last" relation, so the
	// page count is read from the first page instead.
	if len(repos) == 0 && page > 1 && resp.LastPage == 0 && resp.NextPage == 0 {
		opts.Page = 1
		_, first, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: list repositories: %w", ErrFetchFailed, err)
		}
		p := paginationFrom(first, 1, perPage)
		return []core.RepositorySummary{}, &core.Pagination{Page: page, PerPage: perPage, Total: p.Total}, nil
	}

	out := make([]core.RepositorySummary, 0, len(repos))
	for _, r := range repos {
		out = append(out, core.RepositorySummary{
			ID:              r.GetID(),
			Name:            r.GetName(),
			Description:     r.GetDescription(),
			Language:        r.GetLanguage(),
			StargazersCount: r.GetStargazersCount(),
			ForksCount:      r.GetForksCount(),
			Homepage:        r.GetHomepage(),
			UpdatedAt:       r.GetUpdatedAt().Time,
			HTMLURL:         r.GetHTMLURL(),
		})
	}

	return out, paginationFrom(resp, page, perPage), nil
}

// paginationFrom derives page counts from the parsed Link header.
// Without a "last" relation the current page is the last one.
func paginationFrom(resp *github.Response, page, perPage int) *core.Pagination {
	p := &core.Pagination{Page: page, PerPage: perPage, Total: page}
	if resp == nil {
		return p
	}
	if resp.LastPage > 0 {
		p.Total = resp.LastPage
	}
	p.HasNext = resp.NextPage > 0
	if p.HasNext && p.Total < resp.NextPage {
		p.Total = resp.NextPage
	}
	return p
}

// NormalizePage clamps page to >= 1 and perPage to [1, MaxPerPage].
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage
}

// SortByStars orders repos by descending star count, keeping the original
// relative order of repositories with equal counts.
func SortByStars(repos []core.RepositorySummary) {
	slices.SortStableFunc(repos, func(a, b core.RepositorySummary) int {
		return b.StargazersCount - a.StargazersCount
	})
}

func (g *GitHub) client(token string) *github.Client {
	c := github.NewClient(g.httpClient).WithAuthToken(token)
	c.BaseURL = g.apiURL
	return c
}

type acceptJSON struct {
	next http.RoundTripper
}

func (t acceptJSON) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept", "application/json")
	}
	return t.next.RoundTrip(req)
}

func withAcceptJSON(c *http.Client) *http.Client {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	out := *c
	out.Transport = acceptJSON{next: next}
	return &out
}
