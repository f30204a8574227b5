package client

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient   *http.Client
	apiKey       string
	tenant       string
	tenantHeader string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithAPIKey sets the bearer secret sent on every /v1 request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithTenant scopes every request to tenant. Without it the server's
// default tenant applies.
func WithTenant(tenant string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tenant = tenant
	})
}

// WithTenantHeader overrides the header carrying the tenant (default X-Tenant-Id).
func WithTenantHeader(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tenantHeader = name
	})
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithLogger enables structured logging of client operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
