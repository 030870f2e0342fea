// Package jira implements tracker.Client on top of the Jira REST API.
package jira

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/config"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// Error variables for client construction.
var (
	ErrMissingCredential = errors.New("missing tracker credential")
	ErrURLRequired       = errors.New("jira url is required")
)

const (
	searchPageSize = 100
	epicIssueType  = "Epic"
)

// Options configures a Client.
type Options struct {
	URL           string
	Token         string
	VerifyTLS     bool
	Timeout       time.Duration
	EpicLinkField string // custom field linking an issue to its epic
	EpicNameField string // custom field holding an epic's name
}

// Client talks to one Jira server.
type Client struct {
	api  *gojira.Client
	opts Options
	log  *zap.Logger
}

var _ tracker.Client = (*Client)(nil)

// NewFromConfig builds a Client from configuration, reading the API token
// from the environment variable named by cfg.TokenEnv.
func NewFromConfig(cfg config.Jira, env map[string]string, log *zap.Logger) (*Client, error) {
	token := env[cfg.TokenEnv]
	if token == "" {
		return nil, fmt.Errorf("%w: set $%s", ErrMissingCredential, cfg.TokenEnv)
	}

	return New(Options{
		URL:           cfg.URL,
		Token:         token,
		VerifyTLS:     cfg.TLSVerified(),
		Timeout:       time.Duration(cfg.Timeout),
		EpicLinkField: cfg.EpicLinkField,
		EpicNameField: cfg.EpicNameField,
	}, log)
}

// New returns a Client. Every request is bounded by opts.Timeout.
func New(opts Options, log *zap.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrURLRequired
	}

	if opts.Token == "" {
		return nil, ErrMissingCredential
	}

	if log == nil {
		log = zap.NewNop()
	}

	base, _ := http.DefaultTransport.(*http.Transport)
	transport := base.Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !opts.VerifyTLS, //nolint:gosec // opt-out per environment
	}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &bearerTransport{token: opts.Token, next: transport},
	}

	api, err := gojira.NewClient(httpClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	if !opts.VerifyTLS {
		log.Warn("jira TLS certificate verification is disabled", zap.String("url", opts.URL))
	}

	return &Client{api: api, opts: opts, log: log}, nil
}

// bearerTransport adds a personal access token to every request.
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)

	return t.next.RoundTrip(clone)
}

// ListEpics returns the project's epics, optionally restricted to a component.
// The epic name comes from the epic-name custom field when it is set.
func (c *Client) ListEpics(ctx context.Context, project, component string) ([]tracker.Epic, error) {
	jql := "project = " + quote(project) + " AND issuetype = " + epicIssueType
	if component != "" {
		jql += " AND component = " + quote(component)
	}

	jql += " ORDER BY summary ASC"

	issues, err := c.search(ctx, jql, "summary", c.opts.EpicNameField)
	if err != nil {
		return nil, fmt.Errorf("listing epics: %w", err)
	}

	epics := make([]tracker.Epic, 0, len(issues))

	for _, issue := range issues {
		epics = append(epics, tracker.Epic{Key: issue.Key, Name: c.epicName(issue)})
	}

	return epics, nil
}

func (c *Client) epicName(issue gojira.Issue) string {
	if issue.Fields == nil {
		return ""
	}

	if c.opts.EpicNameField != "" {
		if v, ok := issue.Fields.Unknowns[c.opts.EpicNameField]; ok {
			if name := NewFieldValue(v).Text(); name != "" {
				return name
			}
		}
	}

	return issue.Fields.Summary
}

// ListIssuesUnderEpic returns all issues linked to epicKey.
func (c *Client) ListIssuesUnderEpic(ctx context.Context, project, epicKey string) ([]tracker.IssueRef, error) {
	jql := "project = " + quote(project) + ` AND "Epic Link" = ` + quote(epicKey) + " ORDER BY summary ASC"

	issues, err := c.search(ctx, jql, "summary")
	if err != nil {
		return nil, fmt.Errorf("listing issues under %s: %w", epicKey, err)
	}

	refs := make([]tracker.IssueRef, 0, len(issues))

	for _, issue := range issues {
		ref := tracker.IssueRef{Key: issue.Key}
		if issue.Fields != nil {
			ref.Title = issue.Fields.Summary
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

type projectVersion struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
	Released bool   `json:"released"`
}

// ListUnreleasedVersions returns versions that are neither released nor archived.
func (c *Client) ListUnreleasedVersions(ctx context.Context, project string) ([]tracker.Version, error) {
	req, err := c.api.NewRequestWithContext(ctx, http.MethodGet, "rest/api/2/project/"+url.PathEscape(project)+"/versions", nil)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	var all []projectVersion

	resp, err := c.api.Do(req, &all)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", gojira.NewJiraError(resp, err))
	}

	versions := make([]tracker.Version, 0, len(all))

	for _, v := range all {
		if v.Archived || v.Released {
			continue
		}

		versions = append(versions, tracker.Version{ID: v.ID, Name: v.Name})
	}

	return versions, nil
}

// CreateEpic creates an epic and returns its key.
func (c *Client) CreateEpic(ctx context.Context, req tracker.EpicRequest) (string, error) {
	fields := &gojira.IssueFields{
		Project:     gojira.Project{Key: req.Project},
		Type:        gojira.IssueType{Name: epicIssueType},
		Summary:     req.Name,
		Description: req.Description,
		Reporter:    user(req.Reporter),
		Assignee:    user(req.Assignee),
		Unknowns:    map[string]any{},
	}

	for _, name := range req.Versions {
		fields.FixVersions = append(fields.FixVersions, &gojira.FixVersion{Name: name})
	}

	for _, name := range req.Components {
		fields.Components = append(fields.Components, &gojira.Component{Name: name})
	}

	if c.opts.EpicNameField != "" {
		fields.Unknowns[c.opts.EpicNameField] = req.Name
	}

	key, err := c.create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("creating epic %q: %w", req.Name, err)
	}

	return key, nil
}

// CreateIssue creates an issue, linking it to req.EpicKey when set.
func (c *Client) CreateIssue(ctx context.Context, req tracker.IssueRequest) (string, error) {
	fields := &gojira.IssueFields{
		Project:     gojira.Project{Key: req.Project},
		Type:        gojira.IssueType{Name: req.Type},
		Summary:     req.Title,
		Description: req.Description,
		Reporter:    user(req.Reporter),
		Assignee:    user(req.Assignee),
		Unknowns:    map[string]any{},
	}

	if req.EpicKey != "" && c.opts.EpicLinkField != "" {
		fields.Unknowns[c.opts.EpicLinkField] = req.EpicKey
	}

	key, err := c.create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("creating %s %q: %w", req.Type, req.Title, err)
	}

	return key, nil
}

func (c *Client) create(ctx context.Context, fields *gojira.IssueFields) (string, error) {
	c.log.Debug("creating jira issue",
		zap.String("project", fields.Project.Key),
		zap.String("type", fields.Type.Name),
		zap.String("summary", fields.Summary))

	created, resp, err := c.api.Issue.CreateWithContext(ctx, &gojira.Issue{Fields: fields})
	if err != nil {
		return "", gojira.NewJiraError(resp, err)
	}

	if created == nil || created.Key == "" {
		return "", errors.New("response carried no issue key")
	}

	return created.Key, nil
}

// ListTransitions returns the transitions currently available on an issue.
func (c *Client) ListTransitions(ctx context.Context, issueKey string) ([]tracker.Transition, error) {
	transitions, _, err := c.api.Issue.GetTransitionsWithContext(ctx, issueKey)
	if err != nil {
		return nil, fmt.Errorf("listing transitions of %s: %w", issueKey, err)
	}

	out := make([]tracker.Transition, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, tracker.Transition{ID: t.ID, Name: t.Name})
	}

	return out, nil
}

// ExecuteTransition applies a transition to an issue.
func (c *Client) ExecuteTransition(ctx context.Context, issueKey, transitionID string) error {
	_, err := c.api.Issue.DoTransitionWithContext(ctx, issueKey, transitionID)
	if err != nil {
		return fmt.Errorf("transitioning %s: %w", issueKey, err)
	}

	return nil
}

// search pages through a JQL query.
func (c *Client) search(ctx context.Context, jql string, fields ...string) ([]gojira.Issue, error) {
	wanted := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			wanted = append(wanted, f)
		}
	}

	c.log.Debug("searching jira", zap.String("jql", jql))

	var all []gojira.Issue

	for start := 0; ; {
		page, resp, err := c.api.Issue.SearchWithContext(ctx, jql, &gojira.SearchOptions{
			StartAt:    start,
			MaxResults: searchPageSize,
			Fields:     wanted,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		start += len(page)

		if len(page) == 0 || len(page) < searchPageSize || resp == nil || start >= resp.Total {
			return all, nil
		}
	}
}

func user(name string) *gojira.User {
	if name == "" {
		return nil
	}

	return &gojira.User{Name: name}
}

// quote renders s as a JQL string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)

	return `"` + r.Replace(s) + `"`
}
