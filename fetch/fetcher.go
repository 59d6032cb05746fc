// Package fetch downloads distribution files published on the registry's
// file hosts, with retry, per-host circuit breaking, DNS caching, and
// on-the-fly digest verification against the index's published hashes.
//
// Retries live only in this package. The metadata client never retries;
// artifact downloads are large, interruptible, and served by CDN hosts
// where a second attempt is usually the right call.
package fetch

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/git-pkgs/pypi"
)

var (
	// ErrNotFound is returned when the file host no longer has the artifact.
	ErrNotFound = errors.New("artifact not found")

	// ErrRateLimited is returned on HTTP 429 from the file host.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstreamDown is returned on 5xx responses from the file host.
	ErrUpstreamDown = errors.New("upstream file host unavailable")

	// ErrDigestMismatch is returned when a downloaded artifact's digest
	// does not match the hash published in the file index.
	ErrDigestMismatch = errors.New("digest mismatch")
)

// Artifact contains the response from fetching a distribution file.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// Fetcher downloads distribution files.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration

	stopRefresh chan struct{}
	stopOnce    sync.Once
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	// Refresh cached DNS entries every 5 minutes; wheel downloads hit the
	// same CDN hosts over and over.
	resolver := &dnscache.Resolver{}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute, // sdists and wheels can be large
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:   "git-pkgs-pypi/1.0",
		maxRetries:  3,
		baseDelay:   500 * time.Millisecond,
		stopRefresh: stop,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close stops the DNS refresh goroutine and releases idle connections.
// The Fetcher stays usable afterwards; only the cache refresh ends. Safe
// to call multiple times.
func (f *Fetcher) Close() {
	f.stopOnce.Do(func() {
		close(f.stopRefresh)
	})
	f.client.CloseIdleConnections()
}

// Fetch downloads an artifact from the given URL.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter to avoid thundering herd.
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(float64(delay) * (rand.Float64() * 0.1))
			delay += jitter

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		artifact, err := f.doFetch(ctx, url)
		if err == nil {
			return artifact, nil
		}

		lastErr = err

		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		// Only rate limits and server errors are worth a second attempt.
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		size := int64(-1)
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}

		return &Artifact{
			Body:        resp.Body,
			Size:        size,
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, ErrRateLimited

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, ErrUpstreamDown

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// Head checks if an artifact exists and returns its metadata without
// downloading.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("head request: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	size = -1
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			size = n
		}
	}

	return size, resp.Header.Get("Content-Type"), nil
}

// digestPreference orders hash algorithms from most to least trusted.
var digestPreference = []string{"sha256", "sha1", "md5"}

// Download fetches file's URL and, when the index published a usable hash,
// wraps the body so the digest is checked as it streams. Reading through to
// EOF returns ErrDigestMismatch if the content does not match; an artifact
// with no known hashes streams unverified.
func (f *Fetcher) Download(ctx context.Context, file pypi.DistributionFile) (*Artifact, error) {
	artifact, err := f.Fetch(ctx, file.URL)
	if err != nil {
		return nil, err
	}

	for _, alg := range digestPreference {
		want, ok := file.Hashes[alg]
		if !ok || want == "" {
			continue
		}
		var h hash.Hash
		switch alg {
		case "sha256":
			h = sha256.New()
		case "sha1":
			h = sha1.New()
		case "md5":
			h = md5.New()
		}
		artifact.Body = &verifyingReadCloser{
			rc:   artifact.Body,
			hash: h,
			alg:  alg,
			want: want,
		}
		break
	}

	return artifact, nil
}

// verifyingReadCloser hashes everything read through it and compares the
// digest once the stream is exhausted.
type verifyingReadCloser struct {
	rc       io.ReadCloser
	hash     hash.Hash
	alg      string
	want     string
	verified bool
}

func (v *verifyingReadCloser) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	if n > 0 {
		_, _ = v.hash.Write(p[:n])
	}
	if errors.Is(err, io.EOF) && !v.verified {
		v.verified = true
		got := hex.EncodeToString(v.hash.Sum(nil))
		if !strings.EqualFold(got, v.want) {
			return n, fmt.Errorf("%w: %s %s, index has %s", ErrDigestMismatch, v.alg, got, v.want)
		}
	}
	return n, err
}

func (v *verifyingReadCloser) Close() error {
	return v.rc.Close()
}
