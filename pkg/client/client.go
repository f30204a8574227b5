package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTenantHeader = "X-Tenant-Id"

// Client talks to one storaged server. It is safe for concurrent use.
type Client struct {
	base         *url.URL
	hc           *http.Client
	apiKey       string
	tenant       string
	tenantHeader string
	obs          *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		httpClient:   http.DefaultClient,
		tenantHeader: defaultTenantHeader,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("storaged client: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("storaged client: base url %q must be absolute", baseURL)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:         base,
		hc:           cfg.httpClient,
		apiKey:       cfg.apiKey,
		tenant:       cfg.tenant,
		tenantHeader: cfg.tenantHeader,
		obs:          obs,
	}, nil
}

// WithTenant returns a copy of c scoped to tenant.
func (c *Client) WithTenant(tenant string) *Client {
	cp := *c
	cp.tenant = tenant
	return &cp
}

// Health calls /healthz.
func (c *Client) Health(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// Ready calls /readyz. A degraded server yields the report and an
// *APIError with status 503.
func (c *Client) Ready(ctx context.Context) (r Readiness, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ready", start, err) }()

	resp, err := c.send(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return Readiness{}, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Readiness{}, fmt.Errorf("storaged client: decode readiness: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return r, &APIError{
			Status:  resp.StatusCode,
			Code:    CodeEngineUnavailable,
			Message: "server " + r.Status,
		}
	}
	return r, nil
}

// Vectors returns the vector API for one collection.
func (c *Client) Vectors(collection string) *VectorService {
	return &VectorService{c: c, path: "/v1/vector/" + collection}
}

// Thread returns the chat API for one thread.
func (c *Client) Thread(threadID string) *ThreadService {
	return &ThreadService{c: c, path: "/v1/chat/" + threadID + "/messages"}
}

// Graph returns the graph API.
func (c *Client) Graph() *GraphService {
	return &GraphService{c: c}
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("storaged client: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("storaged client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.tenant != "" {
		req.Header.Set(c.tenantHeader, c.tenant)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storaged client: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// do sends the request and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storaged client: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		err = json.Unmarshal(data, apiErr)
	}
	if err != nil || apiErr.Code == "" {
		apiErr.Code = CodeInternalError
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// errNoBody guards against servers that answer 2xx without the expected payload.
var errNoBody = errors.New("storaged client: empty response")
