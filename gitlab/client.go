// Package gitlab fetches members, milestones and labels from the GitLab REST API.
package gitlab

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/internal/httpclient"
	"github.com/teranos/gitlab-ls/resource"
	"github.com/teranos/gitlab-ls/version"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	// PerPage is GitLab's page size (max 100); MaxPages bounds how many
	// pages are followed per fetch.
	PerPage                  int
	MaxPages                 int
	RequestsPerSecond        float64 // 0 = unlimited
	Burst                    int
	IncludeExpiredMilestones bool
	HTTPClient               *httpclient.SaferClient
	Logger                   *zap.SugaredLogger
	Clock                    func() time.Time
}

// Client implements resource.Fetcher against GitLab REST v4.
type Client struct {
	baseURL        *url.URL
	token          string
	perPage        int
	maxPages       int
	includeExpired bool
	limiter        *rate.Limiter
	http           *httpclient.SaferClient
	logger         *zap.SugaredLogger
	clock          func() time.Time
}

var _ resource.Fetcher = (*Client)(nil)

// NewClient validates opts and returns a client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewConfigError("invalid GitLab API URL %q", opts.BaseURL)
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.New(httpclient.Options{UserAgent: userAgent()})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:        base,
		token:          opts.Token,
		perPage:        opts.PerPage,
		maxPages:       opts.MaxPages,
		includeExpired: opts.IncludeExpiredMilestones,
		limiter:        rate.NewLimiter(limit, burst),
		http:           opts.HTTPClient,
		logger:         opts.Logger,
		clock:          opts.Clock,
	}, nil
}

// FromConfig builds a client from the [gitlab] config section.
func FromConfig(cfg config.GitLabConfig, logger *zap.SugaredLogger) (*Client, error) {
	return NewClient(Options{
		BaseURL:                  cfg.BaseURL,
		Token:                    cfg.Token,
		PerPage:                  cfg.PerPage,
		MaxPages:                 cfg.MaxPages,
		RequestsPerSecond:        cfg.RequestsPerSecond,
		Burst:                    cfg.Burst,
		IncludeExpiredMilestones: cfg.IncludeExpiredMilestones,
		HTTPClient: httpclient.New(httpclient.Options{
			Timeout:         cfg.Timeout(),
			BlockPrivateIPs: cfg.BlockPrivateIPs,
			UserAgent:       userAgent(),
		}),
		Logger: logger,
	})
}

func userAgent() string {
	return "gitlab-ls/" + version.Get().Short()
}

type apiMember struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

type apiMilestone struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Expired     bool   `json:"expired"`
}

type apiLabel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// FetchMembers returns active members including those inherited from groups.
func (c *Client) FetchMembers(ctx context.Context, project string) ([]resource.Member, error) {
	raw, err := getAll[apiMember](ctx, c, project, "members/all", nil)
	if err != nil {
		return nil, err
	}
	members := make([]resource.Member, 0, len(raw))
	for _, m := range raw {
		if m.Username == "" || (m.State != "" && m.State != "active") {
			continue
		}
		members = append(members, resource.Member{ID: m.ID, Username: m.Username, Name: m.Name})
	}
	return members, nil
}

// FetchMilestones returns active milestones, including group milestones.
// Expired milestones are dropped unless the client was configured to keep them.
func (c *Client) FetchMilestones(ctx context.Context, project string) ([]resource.Milestone, error) {
	query := url.Values{"state": {"active"}, "include_ancestors": {"true"}}
	raw, err := getAll[apiMilestone](ctx, c, project, "milestones", query)
	if err != nil {
		return nil, err
	}
	now := c.clock()
	milestones := make([]resource.Milestone, 0, len(raw))
	for _, m := range raw {
		if m.Title == "" || (m.Expired && !c.includeExpired) {
			continue
		}
		milestones = append(milestones, resource.Milestone{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			DueDate:     m.DueDate,
			State:       resource.DueStateFor(m.DueDate, m.Expired, now),
		})
	}
	return milestones, nil
}

// FetchLabels returns project labels and those inherited from ancestor groups.
func (c *Client) FetchLabels(ctx context.Context, project string) ([]resource.Label, error) {
	query := url.Values{"include_ancestor_groups": {"true"}}
	raw, err := getAll[apiLabel](ctx, c, project, "labels", query)
	if err != nil {
		return nil, err
	}
	labels := make([]resource.Label, 0, len(raw))
	for _, l := range raw {
		if l.Name == "" {
			continue
		}
		labels = append(labels, resource.Label{ID: l.ID, Name: l.Name, Color: l.Color, Description: l.Description})
	}
	return labels, nil
}

// getAll follows X-Next-Page until exhausted or maxPages is reached.
func getAll[T any](ctx context.Context, c *Client, project, resourcePath string, query url.Values) ([]T, error) {
	var all []T
	page := "1"
	for n := 0; n < c.maxPages && page != ""; n++ {
		var batch []T
		next, err := c.get(ctx, project, resourcePath, query, page, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		page = next
	}
	if page != "" {
		c.logger.Warnw("Stopped paginating before the last page",
			"project", project,
			"resource", resourcePath,
			"max_pages", c.maxPages)
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, project, resourcePath string, query url.Values, page string, out interface{}) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.WrapFetch(err, "rate limiter")
	}

	u := c.projectURL(project, resourcePath)
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", page)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.WrapFetch(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	start := c.clock()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.WrapFetch(err, "GET %s", resourcePath)
	}
	defer resp.Body.Close()

	c.logger.Debugw("GitLab request",
		"project", project,
		"resource", resourcePath,
		"page", page,
		"status", resp.StatusCode,
		"duration_ms", c.clock().Sub(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp, project, resourcePath)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", errors.WrapFetch(err, "failed to decode %s response", resourcePath)
	}
	return strings.TrimSpace(resp.Header.Get("X-Next-Page")), nil
}

// projectURL builds {base}/projects/{id}/{resourcePath}. The project path is
// sent as a single escaped segment, so "group/proj" becomes "group%2Fproj".
func (c *Client) projectURL(project, resourcePath string) *url.URL {
	u := *c.baseURL
	prefix := strings.TrimSuffix(c.baseURL.Path, "/") + "/projects/"
	escapedPrefix := strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + "/projects/"
	u.Path = prefix + project + "/" + resourcePath
	u.RawPath = escapedPrefix + url.PathEscape(project) + "/" + resourcePath
	return &u
}

func statusError(resp *http.Response, project, resourcePath string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	var apiErr struct {
		Message interface{} `json:"message"`
		Error   string      `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		switch {
		case apiErr.Message != nil:
			if b, err := json.Marshal(apiErr.Message); err == nil {
				msg = strings.Trim(string(b), `"`)
			}
		case apiErr.Error != "":
			msg = apiErr.Error
		}
	}

	err := errors.WrapFetch(errors.Newf("GitLab returned %d: %s", resp.StatusCode, msg), "GET %s for %s", resourcePath, project)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		err = errors.WithHintf(err, "check that %s holds a token with the read_api scope", config.TokenEnvVar)
	case http.StatusNotFound:
		err = errors.WithHintf(err, "check that project %q exists and the token can see it", project)
	case http.StatusTooManyRequests:
		err = errors.WithHint(err, "lower gitlab.requests_per_second")
	}
	return err
}
