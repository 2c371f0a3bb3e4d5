package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scr-lifecycle-policy/internal/models"
)

const (
	DefaultBaseURL  = "https://api.scaleway.com"
	DefaultRegion   = "fr-par"
	DefaultPageSize = 100
	DefaultTimeout  = 10 * time.Second

	authHeader = "X-Auth-Token"
)

// Regions lists the regions the Scaleway registry is available in
var Regions = []string{"fr-par", "nl-ams", "pl-waw"}

// ValidRegion reports whether region is one of Regions
func ValidRegion(region string) bool {
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}

// ErrTagNotFound is returned by DeleteTag when the registry no longer knows the tag
var ErrTagNotFound = errors.New("tag not found")

// StatusError is returned when the registry answers with an unexpected status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: registry returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: registry returned status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Options configures a Client
type Options struct {
	BaseURL   string
	Token     string
	Region    string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
}

// Client communicates with the Scaleway Container Registry API
type Client struct {
	baseURL    string
	token      string
	region     string
	pageSize   int
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new registry API client. Zero values in opts fall back
// to the package defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		token:     opts.Token,
		region:    opts.Region,
		pageSize:  opts.PageSize,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Region returns the region the client targets
func (c *Client) Region() string {
	return c.region
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set(authHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// tagsResponse represents the /images/{id}/tags response
type tagsResponse struct {
	Tags       []models.Tag `json:"tags"`
	TotalCount int          `json:"total_count"`
}

// ListTagsPage returns one page of tags for an image. Pages start at 1; an
// empty result means there are no more tags.
func (c *Client) ListTagsPage(ctx context.Context, imageID string, page int) ([]models.Tag, error) {
	path := fmt.Sprintf("/registry/v1/regions/%s/images/%s/tags", url.PathEscape(c.region), url.PathEscape(imageID))
	query := url.Values{
		"page":      []string{strconv.Itoa(page)},
		"page_size": []string{strconv.Itoa(c.pageSize)},
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var tagsResp tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tagsResp.Tags, nil
}

// DeleteTag deletes a tag by ID and returns the response body. A 2xx answer
// confirms the deletion; a 404 is reported as ErrTagNotFound.
func (c *Client) DeleteTag(ctx context.Context, tagID string) (string, error) {
	path := fmt.Sprintf("/registry/v1/regions/%s/tags/%s", url.PathEscape(c.region), url.PathEscape(tagID))
	query := url.Values{"force": []string{"true"}}

	resp, err := c.doRequest(ctx, http.MethodDelete, path, query)
	if err != nil {
		return "", fmt.Errorf("failed to delete tag: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return string(body), fmt.Errorf("tag %s: %w", tagID, ErrTagNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read delete response: %w", err)
	}
	return string(body), nil
}
