// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package xwiki uploads converted pages to an XWiki instance over its REST
// API. Pages live at nested-space URLs of the form
// /spaces/Parent/spaces/PageName/pages/WebHome; attachments and tags hang
// off the same resource.
// See docs/ARCHITECTURE § Upload.
package xwiki

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/enwiki/internal/httputil"
	"github.com/pdiddy/enwiki/pkg/types"
)

// Client talks to one XWiki instance with one set of credentials.
type Client struct {
	baseURL    string
	wikiName   string
	username   string
	password   string
	rateLimit  time.Duration
	maxRetries int
	userAgent  string
	httpClient *http.Client

	// formToken is the CSRF token, fetched once from the REST root.
	formToken string
}

// NewClient builds a client from wiki configuration. Unset fields get the
// defaults the hosted XWiki Cloud expects.
func NewClient(cfg types.WikiConfig) *Client {
	wikiName := cfg.WikiName
	if wikiName == "" {
		wikiName = "xwiki"
	}
	rateLimit := cfg.RateLimitDelay
	if rateLimit == 0 {
		rateLimit = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		wikiName:   wikiName,
		username:   cfg.Username,
		password:   cfg.Password,
		rateLimit:  rateLimit,
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// restBase returns the wiki's REST API root.
func (c *Client) restBase() string {
	return c.baseURL + "/rest/wikis/" + c.wikiName
}

// spaceURLPath converts a space path like "Parent.Child" into the REST URL
// form "spaces/Parent/spaces/Child".
func spaceURLPath(space string) string {
	parts := strings.Split(space, ".")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		segments = append(segments, "spaces/"+part)
	}
	return strings.Join(segments, "/")
}

// pageRESTURL is the REST resource for a page: the page name becomes a
// nested space whose WebHome holds the content.
func (c *Client) pageRESTURL(space, pageName string) string {
	return c.restBase() + "/" + spaceURLPath(space) + "/spaces/" + pageName + "/pages/WebHome"
}

// PageURL returns the browsable URL for a page.
func (c *Client) PageURL(space, pageName string) string {
	return c.baseURL + "/wiki/" + c.wikiName + "/" + strings.ReplaceAll(space, ".", "/") + "/" + pageName
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.formToken != "" {
		req.Header.Set("XWiki-Form-Token", c.formToken)
	}
	return req, nil
}

// wait applies the write rate-limit delay, honoring cancellation.
func (c *Client) wait(ctx context.Context) error {
	if c.rateLimit <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.rateLimit):
		return nil
	}
}

// TestConnection verifies the wiki is reachable and the credentials are
// accepted, and caches the CSRF form token for later writes.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.restBase(), nil, "")
	if err != nil {
		return err
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wiki returned HTTP %d from %s", resp.StatusCode, c.restBase())
	}
	if token := resp.Header.Get("XWiki-Form-Token"); token != "" {
		c.formToken = token
	}
	return nil
}

// PageExists checks whether a page already exists at (space, pageName).
func (c *Client) PageExists(ctx context.Context, space, pageName string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.pageRESTURL(space, pageName), nil, "")
	if err != nil {
		return false, err
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return false, fmt.Errorf("checking page %s: %w", pageName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

// created reports whether a write response indicates success.
func created(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated || code == http.StatusAccepted
}

// CreateOrUpdatePage uploads a converted page, its attachments, and its
// tags. Attachment and tag failures do not fail the page; they show up in
// the result counts. The result's Error is set only when the page itself
// could not be written.
func (c *Client) CreateOrUpdatePage(ctx context.Context, page *types.ConvertedPage, dryRun bool) types.UploadResult {
	pageName := page.PageName()

	if dryRun {
		return types.UploadResult{
			Success: true,
			PageURL: c.PageURL(page.Space, pageName),
		}
	}

	pageURL := c.pageRESTURL(page.Space, pageName)
	body := buildPageXML(page)

	if err := c.wait(ctx); err != nil {
		return types.UploadResult{Error: err.Error()}
	}

	req, err := c.newRequest(ctx, http.MethodPut, pageURL, body, "application/xml; charset=UTF-8")
	if err != nil {
		return types.UploadResult{Error: err.Error()}
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return types.UploadResult{Error: fmt.Sprintf("request error: %v | URL: %s", err, pageURL)}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	resp.Body.Close()

	if !created(resp.StatusCode) {
		return types.UploadResult{
			Error: fmt.Sprintf("HTTP %d: %s | URL: %s", resp.StatusCode, respBody, pageURL),
		}
	}

	result := types.UploadResult{
		Success: true,
		PageURL: c.PageURL(page.Space, pageName),
	}

	for i := range page.Attachments {
		if c.uploadAttachment(ctx, page.Space, pageName, &page.Attachments[i]) {
			result.AttachmentsUploaded++
		} else {
			result.AttachmentsFailed++
		}
	}

	if len(page.Tags) > 0 {
		c.addTags(ctx, page.Space, pageName, page.Tags)
	}

	// The REST API has been seen to report success for writes it silently
	// dropped; verify the page actually exists.
	exists, err := c.PageExists(ctx, page.Space, pageName)
	if err != nil || !exists {
		return types.UploadResult{
			Error: "page creation reported success but verification failed - page not found",
		}
	}

	return result
}

// uploadAttachment PUTs one attachment payload under the page. The filename
// is path-escaped: "?" and "#" are legal in export resource names but would
// split the request URL.
func (c *Client) uploadAttachment(ctx context.Context, space, pageName string, att *types.Attachment) bool {
	putURL := c.pageRESTURL(space, pageName) + "/attachments/" + url.PathEscape(att.Filename)

	if err := c.wait(ctx); err != nil {
		return false
	}
	req, err := c.newRequest(ctx, http.MethodPut, putURL, att.Data, att.MIMEType)
	if err != nil {
		return false
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return created(resp.StatusCode)
}

// addTags attaches tags to the page.
func (c *Client) addTags(ctx context.Context, space, pageName string, tags []string) bool {
	tagsURL := c.pageRESTURL(space, pageName) + "/tags"

	if err := c.wait(ctx); err != nil {
		return false
	}
	req, err := c.newRequest(ctx, http.MethodPut, tagsURL, buildTagsXML(tags), "application/xml; charset=UTF-8")
	if err != nil {
		return false
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return created(resp.StatusCode)
}

// DeletePage removes a page. Used by cleanup tooling, not the import path.
func (c *Client) DeletePage(ctx context.Context, space, pageName string) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, c.pageRESTURL(space, pageName), nil, "")
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("deleting page %s: %w", pageName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent, nil
}

var xmlContentEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var xmlAttrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// buildPageXML renders the REST page resource body.
func buildPageXML(page *types.ConvertedPage) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<page xmlns="http://www.xwiki.org">` + "\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", xmlAttrEscaper.Replace(page.Title))
	b.WriteString("  <syntax>xwiki/2.1</syntax>\n")
	fmt.Fprintf(&b, "  <content>%s</content>\n", xmlContentEscaper.Replace(page.Content))
	b.WriteString("</page>")
	return b.Bytes()
}

// buildTagsXML renders the REST tags resource body.
func buildTagsXML(tags []string) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<tags xmlns="http://www.xwiki.org">` + "\n")
	for _, tag := range tags {
		fmt.Fprintf(&b, "  <tag><name>%s</name></tag>\n", xmlContentEscaper.Replace(tag))
	}
	b.WriteString("</tags>")
	return b.Bytes()
}
