// Package wiki is the single point of contact with the remote MediaWiki
// instance. It translates domain operations into Action API calls and remote
// responses into value objects, and it is the only place raw transport
// failures are caught and reclassified into fault kinds.
package wiki

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foomo/mediawiki-mcp/config"
	"github.com/foomo/mediawiki-mcp/fault"
	"github.com/foomo/mediawiki-mcp/render"
	"github.com/foomo/mediawiki-mcp/wiki/vo"
)

const (
	defaultTimeout = 30 * time.Second
	saveTimeout    = 60 * time.Second
	retryDelay     = 250 * time.Millisecond

	defaultLimit = 5
	maxLimit     = 50
)

// Session is the operation surface the dispatcher consumes. It is satisfied
// by Client and by fakes in tests.
type Session interface {
	Fetch(ctx context.Context, title string) (*vo.PageDocument, error)
	Search(ctx context.Context, query string, limit int) (*vo.SearchResultSet, error)
	History(ctx context.Context, title string, limit int) (*vo.PageHistory, error)
	Save(ctx context.Context, title, content, summary string) (*vo.WriteResult, error)
	Render(ctx context.Context, title string) (string, error)
	Status(ctx context.Context) (*vo.StatusReport, error)
	CanWrite() bool
}

// Client implements Session against the MediaWiki Action API. One Client is
// constructed per process from the resolved connection profile and shared by
// all request handlers; it owns the session cookies and performs at most one
// login per process lifetime.
type Client struct {
	profile    config.Profile
	httpClient *http.Client
	logger     *zap.Logger

	loginMu   sync.Mutex
	loginDone bool
	loginErr  error
	loggedIn  bool
	username  string
}

var _ Session = (*Client)(nil)

// NewClient builds a Client for the given profile. A nil httpClient gets a
// cookie-jar-backed default with a bounded timeout; a nil logger is replaced
// with a no-op logger.
func NewClient(profile config.Profile, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		profile:    profile,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CanWrite reports whether bot credentials were configured at startup.
func (c *Client) CanWrite() bool {
	return c.profile.HasCredentials()
}

// NormalizeTitle trims a title, collapses internal whitespace and replaces
// underscores with spaces, matching MediaWiki's own title normalization.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " ")
}

func titlesEqualFold(a, b string) bool {
	return strings.EqualFold(NormalizeTitle(a), NormalizeTitle(b))
}

// clampLimit makes limits forgiving: non-positive values take the default,
// values above the maximum are capped rather than rejected.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Fetch reads a full page. When the exact title is missing it resolves the
// title case-insensitively through a best-effort search and retries once
// under the canonical title before declaring NotFound. The returned document
// is built fresh on every call and never cached.
func (c *Client) Fetch(ctx context.Context, title string) (*vo.PageDocument, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return nil, fault.New(fault.InvalidArgument, "title must not be empty")
	}
	doc, err := c.fetchExact(ctx, title)
	if err == nil {
		return doc, nil
	}
	if !fault.IsKind(err, fault.NotFound) {
		return nil, err
	}
	canonical, ok := c.resolveTitle(ctx, title)
	if !ok {
		return nil, err
	}
	c.logger.Debug("resolved title case-insensitively",
		zap.String("requested", title), zap.String("canonical", canonical))
	return c.fetchExact(ctx, canonical)
}

func (c *Client) fetchExact(ctx context.Context, title string) (*vo.PageDocument, error) {
	env, err := c.apiGet(ctx, url.Values{
		"action":  {"query"},
		"titles":  {title},
		"prop":    {"revisions|info|categories"},
		"rvprop":  {"content|ids|timestamp"},
		"rvslots": {"main"},
		"inprop":  {"url|protection"},
		"cllimit": {"max"},
	})
	if err != nil {
		return nil, err
	}
	page, err := firstPage(env)
	if err != nil {
		return nil, err
	}
	if page.Missing || page.Invalid {
		return nil, fault.Newf(fault.NotFound, "page not found: %s", title)
	}

	doc := &vo.PageDocument{
		ID:    page.PageID,
		Title: page.Title,
		Metadata: vo.PageMetadata{
			URL:        page.FullURL,
			Namespace:  page.Namespace,
			Length:     page.Length,
			Categories: []string{},
		},
	}
	if doc.Metadata.URL == "" {
		doc.Metadata.URL = c.profile.PageURL(page.Title)
	}
	if len(page.Revisions) > 0 {
		rev := page.Revisions[0]
		doc.Metadata.LastModified = rev.Timestamp
		if slot, ok := rev.Slots["main"]; ok {
			doc.Content = slot.Content
		}
	}
	for _, prot := range page.Protection {
		if prot.Type == "edit" {
			doc.Metadata.Protection = append(doc.Metadata.Protection, prot.Level)
		}
	}
	for _, cat := range page.Categories {
		doc.Metadata.Categories = append(doc.Metadata.Categories, categoryName(cat.Title))
	}
	return doc, nil
}

// categoryName strips the namespace prefix from a category page title.
func categoryName(title string) string {
	if _, name, ok := strings.Cut(title, ":"); ok {
		return name
	}
	return title
}

// resolveTitle looks for a case-insensitive match via search. It is
// best-effort: any search failure means no resolution, never an error.
func (c *Client) resolveTitle(ctx context.Context, title string) (string, bool) {
	result, err := c.Search(ctx, title, defaultLimit)
	if err != nil {
		return "", false
	}
	for _, hit := range result.Results {
		if titlesEqualFold(hit.Title, title) {
			return hit.Title, true
		}
	}
	return "", false
}

// Search runs a full-text search, preserving the wiki's relevance order.
// Snippets are stripped to plain text.
func (c *Client) Search(ctx context.Context, query string, limit int) (*vo.SearchResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fault.New(fault.InvalidArgument, "search query must not be empty")
	}
	limit = clampLimit(limit)
	env, err := c.apiGet(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {"snippet"},
		"srinfo":   {"totalhits"},
	})
	if err != nil {
		return nil, err
	}
	result := &vo.SearchResultSet{
		Query:   query,
		Results: []vo.SearchHit{},
	}
	if env.Query != nil {
		if env.Query.SearchInfo != nil {
			result.Total = env.Query.SearchInfo.TotalHits
		}
		for _, hit := range env.Query.Search {
			result.Results = append(result.Results, vo.SearchHit{
				Title:   hit.Title,
				Snippet: render.SnippetText(hit.Snippet),
			})
		}
	}
	return result, nil
}

// History lists a page's revisions, most recent first.
func (c *Client) History(ctx context.Context, title string, limit int) (*vo.PageHistory, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return nil, fault.New(fault.InvalidArgument, "title must not be empty")
	}
	limit = clampLimit(limit)
	env, err := c.apiGet(ctx, url.Values{
		"action":  {"query"},
		"titles":  {title},
		"prop":    {"revisions"},
		"rvprop":  {"ids|timestamp|user|comment"},
		"rvlimit": {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	page, err := firstPage(env)
	if err != nil {
		return nil, err
	}
	if page.Missing || page.Invalid {
		return nil, fault.Newf(fault.NotFound, "page not found: %s", title)
	}
	history := &vo.PageHistory{
		Title:     page.Title,
		Revisions: []vo.RevisionEntry{},
	}
	for _, rev := range page.Revisions {
		history.Revisions = append(history.Revisions, vo.RevisionEntry{
			RevisionID:  rev.RevID,
			Timestamp:   rev.Timestamp,
			EditSummary: rev.Comment,
			Author:      rev.User,
		})
	}
	return history, nil
}

// Save creates or edits a page. It requires configured credentials and a
// successful login, fetches a fresh CSRF token, then posts the edit. Writes
// are never retried.
func (c *Client) Save(ctx context.Context, title, content, summary string) (*vo.WriteResult, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return nil, fault.New(fault.InvalidArgument, "title must not be empty")
	}
	if !c.CanWrite() {
		return nil, fault.WithHint(
			fault.New(fault.Unauthorized, "no bot credentials configured, writes are disabled"),
			"set "+config.EnvBotUser+" and "+config.EnvBotPass+" to enable writes")
	}
	// The whole write path runs on a context detached from caller
	// cancellation: a client disconnect must not abort an edit that is
	// already on its way to the wiki.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := c.ensureLogin(writeCtx); err != nil {
		return nil, err
	}

	token, err := c.fetchToken(writeCtx, "csrf")
	if err != nil {
		return nil, err
	}
	env, err := c.apiPost(writeCtx, url.Values{
		"action":  {"edit"},
		"title":   {title},
		"text":    {content},
		"summary": {summary},
		"bot":     {"1"},
		"token":   {token},
	})
	if err != nil {
		return nil, err
	}
	if env.Edit == nil || env.Edit.Result != "Success" {
		result := "no result"
		if env.Edit != nil {
			result = env.Edit.Result
		}
		return nil, fault.Newf(fault.RemoteRejected, "wiki declined the edit: %s", result)
	}

	canonical := env.Edit.Title
	if canonical == "" {
		canonical = title
	}
	c.logger.Info("saved page",
		zap.String("title", canonical),
		zap.Int64("revisionId", env.Edit.NewRevID),
		zap.Bool("new", env.Edit.New))
	return &vo.WriteResult{
		Status:     "success",
		Title:      canonical,
		RevisionID: env.Edit.NewRevID,
		URL:        c.profile.PageURL(canonical),
		NoChange:   env.Edit.NoChange,
	}, nil
}

// Render returns a page's parsed HTML, for markdown conversion.
func (c *Client) Render(ctx context.Context, title string) (string, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return "", fault.New(fault.InvalidArgument, "title must not be empty")
	}
	env, err := c.apiGet(ctx, url.Values{
		"action": {"parse"},
		"page":   {title},
		"prop":   {"text"},
	})
	if err != nil {
		return "", err
	}
	if env.Parse == nil {
		return "", fault.New(fault.RemoteRejected, "wiki returned no parse data")
	}
	return env.Parse.Text, nil
}

// Status is a read-only diagnostic. It reports the connection profile, the
// wiki's version and statistics, and the session's login state. A login
// failure is reported as loggedIn=false rather than an error; only an
// unreachable wiki fails the call.
func (c *Client) Status(ctx context.Context) (*vo.StatusReport, error) {
	env, err := c.apiGet(ctx, url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
		"siprop": {"general|statistics"},
	})
	if err != nil {
		return nil, err
	}

	if c.CanWrite() {
		if err := c.ensureLogin(ctx); err != nil {
			c.logger.Warn("status probe: login failed", zap.Error(err))
		}
	}
	loggedIn, username := c.sessionState()

	report := &vo.StatusReport{
		Status:   "ok",
		Host:     c.profile.Host,
		APIPath:  c.profile.APIPath,
		Scheme:   c.profile.Scheme(),
		LoggedIn: loggedIn,
		Username: username,
	}
	if env.Query != nil {
		if env.Query.General != nil {
			report.SiteName = env.Query.General.SiteName
			report.MediaWikiVersion = env.Query.General.Generator
		}
		if env.Query.Statistics != nil {
			report.Pages = env.Query.Statistics.Pages
			report.Articles = env.Query.Statistics.Articles
			report.Edits = env.Query.Statistics.Edits
		}
	}
	return report, nil
}

func (c *Client) sessionState() (bool, string) {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.loggedIn, c.username
}

// ensureLogin performs the one-time bot login. Success and credential
// rejection are cached so the login happens at most once per process; an
// unreachable wiki is returned without caching so a later call may retry.
func (c *Client) ensureLogin(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if c.loginDone {
		return c.loginErr
	}
	if !c.profile.HasCredentials() {
		c.loginDone = true
		return nil
	}

	err := c.login(ctx)
	if err != nil && fault.IsUnreachable(err) {
		return err
	}
	c.loginDone = true
	c.loginErr = err
	return err
}

func (c *Client) login(ctx context.Context) error {
	token, err := c.fetchToken(ctx, "login")
	if err != nil {
		return err
	}
	env, err := c.apiPost(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {c.profile.BotUser},
		"lgpassword": {c.profile.BotPass},
		"lgtoken":    {token},
	})
	if err != nil {
		return err
	}
	if env.Login == nil || env.Login.Result != "Success" {
		reason := "no login result"
		if env.Login != nil {
			reason = env.Login.Result
			if env.Login.Reason != "" {
				reason = env.Login.Reason
			}
		}
		return fault.Newf(fault.Unauthorized, "wiki rejected the bot credentials: %s", reason)
	}
	c.loggedIn = true
	c.username = env.Login.LgUserName
	c.logger.Info("logged in to wiki", zap.String("username", c.username))
	return nil
}
