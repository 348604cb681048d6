package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultTimeout = 10 * time.Second

// ErrNoUpstream is returned when no upstream URL is configured.
var ErrNoUpstream = errors.New("no upstream configured")

// Proxy forwards requests, with whatever headers earlier middleware set,
// to a single upstream.
type Proxy struct {
	target *url.URL
	client *http.Client
	logger *slog.Logger
}

// New creates a proxy forwarding to upstream.
func New(upstream string, timeout time.Duration, logger *slog.Logger) (*Proxy, error) {
	if upstream == "" {
		return nil, ErrNoUpstream
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("can't parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q needs a scheme and host", upstream)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Proxy{
		target: target,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Handle forwards the request and copies the upstream response back.
func (p *Proxy) Handle(c *gin.Context) {
	r := c.Request.Clone(c.Request.Context())
	r.URL.Scheme = p.target.Scheme
	r.URL.Host = p.target.Host
	r.RequestURI = ""
	r.Host = ""
	r.Header.Del("Accept-Encoding")

	if ip := c.RemoteIP(); ip != "" {
		chain := append(r.Header.Values("X-Forwarded-For"), ip)
		r.Header.Set("X-Forwarded-For", strings.Join(chain, ", "))
	}

	resp, err := p.client.Do(r)
	if err != nil {
		p.logger.Error("upstream request failed", "upstream", p.target.String(), "error", err)
		c.AbortWithStatus(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vals := range resp.Header {
		for _, v := range vals {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		p.logger.Error("failed to copy upstream body", "error", err)
	}
}

// Close releases idle upstream connections.
func (p *Proxy) Close() {
	p.client.CloseIdleConnections()
}
