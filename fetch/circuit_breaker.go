package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerFetcher wraps a Fetcher with per-host circuit breakers, so a dead
// mirror or CDN edge stops eating retries while other hosts stay reachable.
type BreakerFetcher struct {
	fetcher  *Fetcher
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakerFetcher creates a circuit-breaking wrapper around a fetcher.
func NewBreakerFetcher(f *Fetcher) *BreakerFetcher {
	return &BreakerFetcher{
		fetcher:  f,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// breaker returns or creates the circuit breaker for a host.
func (bf *BreakerFetcher) breaker(host string) *circuit.Breaker {
	bf.mu.RLock()
	b, exists := bf.breakers[host]
	bf.mu.RUnlock()

	if exists {
		return b
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()

	// Double-check after acquiring write lock.
	if b, exists := bf.breakers[host]; exists {
		return b
	}

	// Trips after 5 consecutive failures, recovering on an exponential
	// schedule between 30s and 5m.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	}
	b = circuit.NewBreakerWithOptions(opts)

	bf.breakers[host] = b
	return b
}

// Close closes the underlying fetcher.
func (bf *BreakerFetcher) Close() {
	bf.fetcher.Close()
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (bf *BreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	host := hostOf(fetchURL)
	b := bf.breaker(host)

	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var artifact *Artifact
	err := b.Call(func() error {
		var fetchErr error
		artifact, fetchErr = bf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	}, 0)

	if err != nil {
		return nil, err
	}

	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (bf *BreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	host := hostOf(headURL)
	b := bf.breaker(host)

	if !b.Ready() {
		return 0, "", fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	err = b.Call(func() error {
		var headErr error
		size, contentType, headErr = bf.fetcher.Head(ctx, headURL)
		return headErr
	}, 0)

	return size, contentType, err
}

// hostOf extracts the host from a URL for circuit breaker grouping.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Fallback to simple truncation.
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerState reports each host's breaker as "open" or "closed", for
// health checks.
func (bf *BreakerFetcher) BreakerState() map[string]string {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	states := make(map[string]string)
	for host, b := range bf.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
