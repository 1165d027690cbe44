package discovery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/verdantline/greenwash-cli/internal/extract"
)

// maxFetchBytes caps how much of a source body is read. Reports can run
// large but anything past this contributes nothing after the content cap.
const maxFetchBytes = 16 << 20

// FetchOptions configures the source fetcher.
type FetchOptions struct {
	UserAgent string
	// PerHostRate limits requests per second to any single host.
	PerHostRate rate.Limit
	Transport   http.RoundTripper
}

// Fetcher downloads candidate sources and extracts their text. Each host
// gets its own rate limiter so one slow publisher cannot starve the rest.
type Fetcher struct {
	client *http.Client
	opts   FetchOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "greenwash-cli/1.0 (+esg-research)"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 4
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &Fetcher{
		client:   &http.Client{Transport: transport},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.PerHostRate, int(f.opts.PerHostRate))
		f.limiters[host] = lim
	}
	return lim
}

// FetchText downloads a source and returns its extracted plain text.
// PDF bodies are detected by Content-Type or by the URL's extension;
// everything else is treated as HTML.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return "", eris.Wrap(err, "discovery: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: build request %s", rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("discovery: fetch %s: http %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", eris.Wrapf(err, "discovery: read body %s", rawURL)
	}

	hint := rawURL
	if ctype := strings.ToLower(resp.Header.Get("Content-Type")); strings.Contains(ctype, "pdf") {
		hint = ctype
	}
	text, err := extract.FromBytes(data, hint)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: extract %s", rawURL)
	}
	return text, nil
}
