package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// maxErrorBody caps how much of a failed response is kept for the message.
const maxErrorBody = 4 << 10

// Fields maps the submission values to the tracker's custom field keys.
type Fields struct {
	SupportURL       string
	DocumentationURL string
	PrivacyURL       string
	TermsURL         string
	Vendor           string
}

// Client is a thin HTTP client for the Jira Server/DC REST API v2. It
// authenticates with HTTP basic auth and makes exactly one attempt per call.
type Client struct {
	baseURL    string
	username   string
	password   string
	fields     Fields
	httpClient *http.Client
}

// NewClient creates a tracker client. The baseURL should be the root URL of
// the Jira instance (e.g., https://jira.corp.example.com). A zero timeout
// leaves requests bounded only by the context.
func NewClient(baseURL, username, password string, fields Fields, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		fields:     fields,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchIssue retrieves the attachments and submission fields of an issue.
func (c *Client) FetchIssue(ctx context.Context, issueID string) (*model.Issue, error) {
	const op = "fetch issue"

	q := url.Values{}
	q.Set("fields", strings.Join(append([]string{"attachment"}, c.fieldKeys()...), ","))
	path := "/rest/api/2/issue/" + url.PathEscape(issueID) + "?" + q.Encode()

	var resp issueResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+path, nil, &resp); err != nil {
		return nil, model.Wrap(model.KindRequest, op, err)
	}

	issue := &model.Issue{Key: resp.Key}
	if issue.Key == "" {
		issue.Key = issueID
	}

	if raw, ok := resp.Fields["attachment"]; ok && string(raw) != "null" {
		var atts []attachment
		if err := json.Unmarshal(raw, &atts); err != nil {
			return nil, model.Errorf(model.KindRequest, op, "decoding attachments: %w", err)
		}
		for _, a := range atts {
			issue.Attachments = append(issue.Attachments, a.toModel())
		}
	}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{c.fields.SupportURL, &issue.URLs.Support},
		{c.fields.DocumentationURL, &issue.URLs.Documentation},
		{c.fields.PrivacyURL, &issue.URLs.Privacy},
		{c.fields.TermsURL, &issue.URLs.TermsOfUse},
		{c.fields.Vendor, &issue.Vendor},
	} {
		v, err := fieldString(resp.Fields[f.key])
		if err != nil {
			return nil, model.Errorf(model.KindRequest, op, "decoding field %s: %w", f.key, err)
		}
		*f.dst = strings.TrimSpace(v)
	}

	return issue, nil
}

// AddComment posts a plain-text comment to an issue.
func (c *Client) AddComment(ctx context.Context, issueID, body string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(issueID) + "/comment"
	if err := c.do(ctx, http.MethodPost, c.baseURL+path, commentRequest{Body: body}, nil); err != nil {
		return model.Wrap(model.KindRequest, "add comment", err)
	}
	return nil
}

// Download streams the attachment at contentURL into w and returns the
// number of bytes written. Relative URLs resolve against the tracker; absolute
// URLs must share its scheme and host so credentials never leave it.
func (c *Client) Download(ctx context.Context, contentURL string, w io.Writer) (int64, error) {
	const op = "download attachment"

	contentURL, err := c.sameOrigin(contentURL)
	if err != nil {
		return 0, model.Wrap(model.KindRequest, op, err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return 0, model.Wrap(model.KindRequest, op, err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, model.Errorf(model.KindRequest, op, "executing request GET %s: %w", contentURL, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.MethodGet, contentURL, c.baseURL); err != nil {
		return 0, model.Wrap(model.KindRequest, op, err)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, model.Errorf(model.KindRequest, op, "reading response body: %w", err)
	}
	return n, nil
}

// sameOrigin resolves rawURL against the base URL and rejects it when it
// points at a different scheme or host.
func (c *Client) sameOrigin(rawURL string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing attachment URL: %w", err)
	}
	u := base.ResolveReference(ref)
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", fmt.Errorf("attachment URL %s is not on %s", redact(u.String()), base.Host)
	}
	return u.String(), nil
}

func (c *Client) fieldKeys() []string {
	return []string{
		c.fields.SupportURL,
		c.fields.DocumentationURL,
		c.fields.PrivacyURL,
		c.fields.TermsURL,
		c.fields.Vendor,
	}
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	return req, nil
}

// do builds the request, handles auth and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	rawURL string,
	body any,
	result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, rawURL, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, redact(rawURL), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, rawURL, c.baseURL); err != nil {
		return err
	}

	// No content to parse (e.g. 201 with an ignored body, or 204).
	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, redact(rawURL), err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an error, folding in any Jira
// error messages from the body.
func checkStatus(resp *http.Response, method, rawURL, baseURL string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf(
			"authentication failed (401): check the service account credentials for %s", baseURL,
		)
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var jiraErr ErrorResponse
	if json.Unmarshal(respBody, &jiraErr) == nil &&
		(len(jiraErr.ErrorMessages) > 0 || len(jiraErr.Errors) > 0) {
		msgs := append([]string(nil), jiraErr.ErrorMessages...)
		for field, msg := range jiraErr.Errors {
			msgs = append(msgs, field+": "+msg)
		}
		return fmt.Errorf(
			"jira API error (%d) on %s %s: %s",
			resp.StatusCode, method, redact(rawURL), strings.Join(msgs, "; "),
		)
	}

	return fmt.Errorf(
		"unexpected status %d on %s %s: %s",
		resp.StatusCode, method, redact(rawURL), strings.TrimSpace(string(respBody)),
	)
}

// redact drops the query string so error messages stay short.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
