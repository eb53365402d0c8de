// Package collyfetcher implements the probe fetch using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs a single plain-HTTP GET of a target URL. JavaScript
// never runs here; pages that need it are escalated to the headless
// fetcher by the caller.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes one HTTP GET and returns the raw document.
func (f *Fetcher) Fetch(ctx context.Context, url string) (roast.RenderedPage, error) {
	var (
		result   roast.RenderedPage
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		result = roast.RenderedPage{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return roast.RenderedPage{}, err
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return classify(url, fmt.Errorf("probe fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if err != nil {
			return classify(url, fmt.Errorf("probe visit failed: %w", err))
		}
		if *fetchErr != nil {
			return classify(url, fmt.Errorf("probe response failed: %w", *fetchErr))
		}
		return nil
	}
}

func classify(url string, err error) error {
	kind := roast.FetchNavigationFailed
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = roast.FetchTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = roast.FetchTimeout
	}
	return &roast.FetchError{Kind: kind, URL: url, Err: err}
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
