// Package fetch retrieves recipe pages politely and classifies failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/barcraft/harvester/internal/harvest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	DomainQPS float64
}

// Fetcher implements harvest.Fetcher using the Colly collector. Robots
// enforcement happens upstream in the compliance checker, so the collector
// itself never consults robots.txt.
type Fetcher struct {
	cfg           Config
	limiter       *DomainLimiter
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       NewDomainLimiter(cfg.DomainQPS),
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET, waiting on the per-domain rate budget
// first. Non-2xx statuses come back as errors classified by ClassifyError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.Page, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return harvest.Page{}, fmt.Errorf("domain rate limit: %w", err)
	}

	var (
		page     harvest.Page
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		page = harvest.Page{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{Code: r.StatusCode}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return harvest.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return harvest.Page{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if err != nil {
			return harvest.Page{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		return page, nil
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Failure labels recorded on jobs for telemetry.
const (
	FailureTimeout     = "timeout"
	FailureDNS         = "dns_error"
	FailureConnection  = "connection_error"
	FailureClientError = "http_4xx"
	FailureServerError = "http_5xx"
	FailureUnknown     = "unknown"
)

// ClassifyError maps a fetch error to a stable failure label.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code >= 500:
			return FailureServerError
		case statusErr.Code >= 400:
			return FailureClientError
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if strings.Contains(err.Error(), "connection refused") {
		return FailureConnection
	}
	return FailureUnknown
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
