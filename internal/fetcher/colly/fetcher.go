// Package collyfetcher implements metadata.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/urlmeta/inventory/internal/metadata"
)

// Defaults applied when Config fields are zero.
const (
	DefaultUserAgent    = "MetadataInventoryBot/1.0"
	DefaultTimeout      = 20 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBodyBytes = 500_000
)

// Config controls collector behavior for metadata fetches.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int
}

// Fetcher performs single-page GET requests via a Colly collector. One
// request per Fetch call, no retries, no link following.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher, filling unset config fields with the documented
// defaults.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects < 1 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	c := colly.NewCollector(
		// colly v2.1.0's Async option sets Async=true regardless of its
		// argument; the zero value is already synchronous, so the option
		// must be omitted to keep one blocking request per Fetch.
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes one GET and extracts the response headers, the final
// response's cookies, and the truncated body text. HTTP 4xx/5xx and
// transport failures both surface as *metadata.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (metadata.Snapshot, error) {
	var (
		snap     metadata.Snapshot
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)

	maxRedirects := f.cfg.MaxRedirects
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		// via includes the original request, so hop N sees len(via) == N.
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	collector.OnResponse(func(r *colly.Response) {
		snap = f.buildSnapshot(r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &metadata.FetchError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = &metadata.FetchError{URL: rawURL, Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return metadata.Snapshot{}, &metadata.FetchError{URL: rawURL, Err: ctx.Err()}
	case err := <-done:
		if fetchErr != nil {
			return metadata.Snapshot{}, fetchErr
		}
		if err != nil {
			return metadata.Snapshot{}, &metadata.FetchError{URL: rawURL, Err: err}
		}
	}
	return snap, nil
}

// buildSnapshot flattens the response into the domain shape: headers as
// name->value with last-value-wins on duplicates, cookies parsed from the
// final response's Set-Cookie headers only, body coerced to valid UTF-8 and
// bounded to the byte budget.
func (f *Fetcher) buildSnapshot(r *colly.Response) metadata.Snapshot {
	headers := make(map[string]string, len(*r.Headers))
	for name, values := range *r.Headers {
		if len(values) > 0 {
			headers[name] = values[len(values)-1]
		}
	}

	cookies := make(map[string]string)
	final := http.Response{Header: *r.Headers}
	for _, c := range final.Cookies() {
		cookies[c.Name] = c.Value
	}

	body := strings.ToValidUTF8(string(r.Body), "")
	body = metadata.TruncatePageSource(body, f.cfg.MaxBodyBytes)

	return metadata.Snapshot{
		Headers: headers,
		Cookies: cookies,
		Body:    body,
	}
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
