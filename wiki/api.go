package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/foomo/mediawiki-mcp/fault"
)

const userAgent = "mediawiki-mcp (github.com/foomo/mediawiki-mcp)"

// apiEnvelope is the top-level shape of every Action API response
// (format=json, formatversion=2).
type apiEnvelope struct {
	Error *apiError `json:"error,omitempty"`
	Query *apiQuery `json:"query,omitempty"`
	Edit  *apiEdit  `json:"edit,omitempty"`
	Login *apiLogin `json:"login,omitempty"`
	Parse *apiParse `json:"parse,omitempty"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// fault classifies an API-level error payload. The wiki answered, so these
// are remote rejections — except for missing titles, which are NotFound.
func (e *apiError) fault() *fault.Fault {
	switch e.Code {
	case "missingtitle", "nosuchpageid":
		return fault.Newf(fault.NotFound, "page not found: %s", e.Info)
	default:
		return fault.Newf(fault.RemoteRejected, "wiki API error %s: %s", e.Code, e.Info)
	}
}

type apiQuery struct {
	Pages      []apiPage         `json:"pages,omitempty"`
	Search     []apiSearchHit    `json:"search,omitempty"`
	SearchInfo *apiSearchInfo    `json:"searchinfo,omitempty"`
	Tokens     map[string]string `json:"tokens,omitempty"`
	General    *apiGeneral       `json:"general,omitempty"`
	Statistics *apiStatistics    `json:"statistics,omitempty"`
}

type apiPage struct {
	PageID     int             `json:"pageid"`
	Namespace  int             `json:"ns"`
	Title      string          `json:"title"`
	Missing    bool            `json:"missing"`
	Invalid    bool            `json:"invalid"`
	Length     int             `json:"length"`
	Touched    string          `json:"touched"`
	FullURL    string          `json:"fullurl"`
	Protection []apiProtection `json:"protection,omitempty"`
	Categories []apiCategory   `json:"categories,omitempty"`
	Revisions  []apiRevision   `json:"revisions,omitempty"`
}

type apiProtection struct {
	Type   string `json:"type"`
	Level  string `json:"level"`
	Expiry string `json:"expiry"`
}

type apiCategory struct {
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

type apiRevision struct {
	RevID     int64              `json:"revid"`
	ParentID  int64              `json:"parentid"`
	User      string             `json:"user"`
	Timestamp string             `json:"timestamp"`
	Comment   string             `json:"comment"`
	Slots     map[string]apiSlot `json:"slots,omitempty"`
}

type apiSlot struct {
	ContentModel string `json:"contentmodel"`
	Content      string `json:"content"`
}

type apiSearchHit struct {
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

type apiSearchInfo struct {
	TotalHits int `json:"totalhits"`
}

type apiGeneral struct {
	SiteName  string `json:"sitename"`
	Generator string `json:"generator"`
}

type apiStatistics struct {
	Pages    int64 `json:"pages"`
	Articles int64 `json:"articles"`
	Edits    int64 `json:"edits"`
}

type apiEdit struct {
	Result   string `json:"result"`
	PageID   int    `json:"pageid"`
	Title    string `json:"title"`
	NewRevID int64  `json:"newrevid"`
	OldRevID int64  `json:"oldrevid"`
	New      bool   `json:"new"`
	NoChange bool   `json:"nochange"`
}

type apiLogin struct {
	Result     string `json:"result"`
	LgUserName string `json:"lgusername"`
	Reason     string `json:"reason"`
}

type apiParse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// apiGet performs a read call. Reads are retried once, transparently, when
// the wiki is unreachable; any other failure surfaces immediately.
func (c *Client) apiGet(ctx context.Context, params url.Values) (*apiEnvelope, error) {
	var env *apiEnvelope
	err := retry.Do(
		func() error {
			e, err := c.call(ctx, http.MethodGet, params)
			if err != nil {
				return err
			}
			env = e
			return nil
		},
		retry.Attempts(2),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(fault.IsUnreachable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("retrying wiki read", zap.Uint("attempt", attempt), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// apiPost performs a state-changing call. Posts are never retried: a
// duplicate edit is worse than a reported failure.
func (c *Client) apiPost(ctx context.Context, form url.Values) (*apiEnvelope, error) {
	return c.call(ctx, http.MethodPost, form)
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*apiEnvelope, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	merged.Set("format", "json")
	merged.Set("formatversion", "2")

	endpoint := c.profile.APIEndpoint()
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(merged.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+merged.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.Unreachable, "wiki is not reachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fault.Newf(fault.Unreachable, "wiki returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fault.Newf(fault.RemoteRejected, "wiki returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.Unreachable, "failed to read wiki response", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fault.Wrap(fault.RemoteRejected, "wiki returned malformed JSON", err)
	}
	if env.Error != nil {
		return nil, env.Error.fault()
	}
	return &env, nil
}

// fetchToken retrieves a token of the given kind ("login" or "csrf").
func (c *Client) fetchToken(ctx context.Context, kind string) (string, error) {
	env, err := c.apiGet(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	})
	if err != nil {
		return "", err
	}
	if env.Query == nil || env.Query.Tokens[kind+"token"] == "" {
		return "", fault.Newf(fault.RemoteRejected, "wiki returned no %s token", kind)
	}
	return env.Query.Tokens[kind+"token"], nil
}

// firstPage returns the single page of a titles= query response.
func firstPage(env *apiEnvelope) (*apiPage, error) {
	if env.Query == nil || len(env.Query.Pages) == 0 {
		return nil, fault.New(fault.RemoteRejected, "wiki returned no page data")
	}
	return &env.Query.Pages[0], nil
}
