// Package blogproxy forwards /blog requests to the externally hosted blog so
// the content is served from the product origin.
package blogproxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// hopHeaders are stripped from proxied responses; the proxy re-chunks the
// body itself.
var hopHeaders = []string{"Connection", "Transfer-Encoding", "Content-Length", "Keep-Alive"}

// Proxy forwards blog paths to a fixed upstream.
type Proxy struct {
	upstream string
	client   *http.Client
}

// New constructs a blog Proxy for the given upstream base URL.
func New(upstream string) *Proxy {
	return &Proxy{
		upstream: strings.TrimRight(strings.TrimSpace(upstream), "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects pass through to the client untouched.
				return http.ErrUseLastResponse
			},
		},
	}
}

// Configured reports whether an upstream is set.
func (p *Proxy) Configured() bool { return p.upstream != "" }

// Handler proxies the incoming request to the upstream, preserving path,
// query and method.
func (p *Proxy) Handler(c *gin.Context) {
	if !p.Configured() {
		c.JSON(http.StatusNotFound, gin.H{"error": "blog not configured"})
		return
	}

	target := p.upstream + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		target += "?" + c.Request.URL.RawQuery
	}

	req, errReq := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if errReq != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "blog upstream unavailable"})
		return
	}
	for name, values := range c.Request.Header {
		if strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		if errors.Is(errDo, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "blog upstream timed out"})
			return
		}
		log.WithError(errDo).Warn("blog proxy request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "blog upstream unavailable"})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	header := c.Writer.Header()
	for name, values := range resp.Header {
		skip := false
		for _, hop := range hopHeaders {
			if strings.EqualFold(name, hop) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}

	c.Status(resp.StatusCode)
	if _, errCopy := io.Copy(c.Writer, resp.Body); errCopy != nil {
		log.WithError(errCopy).Debug("blog proxy body copy interrupted")
	}
}
