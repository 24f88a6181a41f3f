// Package mediahost talks to the Cloudinary compatible image host: signed
// uploads through the upload API, and prefix based listing and deletion
// through the admin API.
package mediahost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const (
	DefaultBaseURL = "https://api.cloudinary.com"
	defaultTimeout = 30 * time.Second

	// listPageSize is the admin API maximum.
	listPageSize = 500
	// maxDeletePasses bounds the loop over partial deletions.
	maxDeletePasses = 50
)

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("media host credentials are not configured")

type ClientOpts struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

type Client struct {
	httpClient *resty.Client
	cloudName  string
	apiKey     string
	apiSecret  string
	now        func() time.Time
}

// Resource is one hosted image.
type Resource struct {
	PublicID  string    `json:"public_id"`
	SecureURL string    `json:"secure_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

type resourcesResponse struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"next_cursor"`
}

type deleteResponse struct {
	Deleted    map[string]string `json:"deleted"`
	Partial    bool              `json:"partial"`
	NextCursor string            `json:"next_cursor"`
}

type foldersResponse struct {
	Folders []Folder `json:"folders"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.CloudName == "" || opts.APIKey == "" || opts.APISecret == "" {
		return nil, ErrNotConfigured
	}
	baseURL := DefaultBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		cloudName: opts.CloudName,
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		now:       time.Now,
	}
	c.httpClient = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetError(&errorResponse{}).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json")

	return c, nil
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetPathParam("cloud", c.cloudName)
	if result != nil {
		request.SetResult(result)
	}
	return request
}

// admin returns a request authenticated for the admin API.
func (c *Client) admin(ctx context.Context, result any) *resty.Request {
	return c.req(ctx, result).SetBasicAuth(c.apiKey, c.apiSecret)
}

// Upload stores a JPEG under publicID, replacing any previous version, and
// returns its HTTPS URL.
func (c *Client) Upload(ctx context.Context, publicID string, data []byte) (string, error) {
	params := map[string]string{
		"public_id": publicID,
		"overwrite": "true",
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	form := map[string]string{
		"api_key":   c.apiKey,
		"signature": Sign(params, c.apiSecret),
	}
	for k, v := range params {
		form[k] = v
	}

	result := &uploadResponse{}
	_, err := handleError(c.req(ctx, result).
		SetFormData(form).
		SetFileReader("file", fileName(publicID), bytes.NewReader(data)).
		Post("/v1_1/{cloud}/image/upload"))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", publicID, err)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("upload %s: response has no secure_url", publicID)
	}
	return result.SecureURL, nil
}

// ListByPrefix returns every resource whose public id starts with prefix,
// following pagination.
func (c *Client) ListByPrefix(ctx context.Context, prefix string) ([]Resource, error) {
	var all []Resource
	cursor := ""
	for {
		result := &resourcesResponse{}
		req := c.admin(ctx, result).
			SetQueryParam("type", "upload").
			SetQueryParam("prefix", prefix).
			SetQueryParam("max_results", strconv.Itoa(listPageSize))
		if cursor != "" {
			req.SetQueryParam("next_cursor", cursor)
		}
		if _, err := handleError(req.Get("/v1_1/{cloud}/resources/image/upload")); err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		all = append(all, result.Resources...)
		if result.NextCursor == "" {
			return all, nil
		}
		cursor = result.NextCursor
	}
}

// DeleteByPrefix removes every resource under prefix and returns how many
// were deleted. The admin API deletes in batches and reports partial
// progress, so the call is repeated until it is complete.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	for pass := 0; pass < maxDeletePasses; pass++ {
		result := &deleteResponse{}
		_, err := handleError(c.admin(ctx, result).
			SetQueryParam("prefix", prefix).
			Delete("/v1_1/{cloud}/resources/image/upload"))
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", prefix, err)
		}
		for _, status := range result.Deleted {
			if status == "deleted" {
				deleted++
			}
		}
		if !result.Partial {
			return deleted, nil
		}
	}
	return deleted, fmt.Errorf("delete %s: still partial after %d passes", prefix, maxDeletePasses)
}

// SubFolders lists the direct children of path.
func (c *Client) SubFolders(ctx context.Context, path string) ([]Folder, error) {
	result := &foldersResponse{}
	_, err := handleError(c.admin(ctx, result).
		SetRawPathParam("path", strings.Trim(path, "/")).
		Get("/v1_1/{cloud}/folders/{path}"))
	if err != nil {
		return nil, fmt.Errorf("subfolders %s: %w", path, err)
	}
	return result.Folders, nil
}

// Sign computes the upload signature: parameters sorted by name, joined as
// k=v pairs with '&', followed by the secret, hashed with SHA-1.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func fileName(publicID string) string {
	if i := strings.LastIndex(publicID, "/"); i >= 0 {
		publicID = publicID[i+1:]
	}
	return publicID + ".jpg"
}

// handleError turns >399 responses into errors, with the host's message
// when it sent one.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		if e, ok := res.Error().(*errorResponse); ok && e.Error.Message != "" {
			return res, fmt.Errorf("request failed: %s %s (status: %d): %s",
				res.Request.Method, res.Request.URL, res.StatusCode(), e.Error.Message)
		}
		return res, fmt.Errorf("request failed: %s %s (status: %d)",
			res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return res, nil
}
