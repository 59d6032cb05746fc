package pypi

import (
	"context"
	"sync"
)

const defaultConcurrency = 15

// BulkGetPackageInfo fetches metadata for multiple packages in parallel,
// bounded by defaultConcurrency. Individual fetch errors are silently
// dropped; those names are omitted from the result map.
func (c *Client) BulkGetPackageInfo(ctx context.Context, names []string) map[string]*PackageRecord {
	return c.BulkGetPackageInfoWithConcurrency(ctx, names, defaultConcurrency)
}

// BulkGetPackageInfoWithConcurrency fetches metadata with a custom
// concurrency limit.
func (c *Client) BulkGetPackageInfoWithConcurrency(ctx context.Context, names []string, concurrency int) map[string]*PackageRecord {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make(map[string]*PackageRecord)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			rec, err := c.GetPackageInfo(ctx, n, "")
			if err == nil && rec != nil {
				mu.Lock()
				results[n] = rec
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return results
}

// BulkPackageExists checks many names in parallel. Names that error for
// reasons other than absence are omitted, not reported false.
func (c *Client) BulkPackageExists(ctx context.Context, names []string) map[string]bool {
	results := make(map[string]bool)
	var mu sync.Mutex
	sem := make(chan struct{}, defaultConcurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			ok, err := c.PackageExists(ctx, n)
			if err != nil {
				return
			}
			mu.Lock()
			results[n] = ok
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	return results
}
