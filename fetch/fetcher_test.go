package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/git-pkgs/pypi"
)

func TestFetchSuccess(t *testing.T) {
	content := "test artifact content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Length", "21")
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), server.URL+"/requests-2.31.0.tar.gz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if artifact.Size != 21 {
		t.Errorf("Size = %d, want 21", artifact.Size)
	}
	if artifact.ContentType != "application/gzip" {
		t.Errorf("ContentType = %q, want %q", artifact.ContentType, "application/gzip")
	}
	if artifact.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", artifact.ETag, `"abc123"`)
	}

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != content {
		t.Errorf("body = %q, want %q", string(body), content)
	}
}

func TestFetchUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("custom-agent/2.0"))
	artifact, err := f.Fetch(context.Background(), server.URL+"/pkg.whl")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_ = artifact.Body.Close()

	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom-agent/2.0")
	}
}

func TestFetcherCloseAndReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), server.URL+"/pkg.whl")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_ = artifact.Body.Close()

	f.Close()
	f.Close() // idempotent

	artifact, err = f.Fetch(context.Background(), server.URL+"/pkg.whl")
	if err != nil {
		t.Fatalf("Fetch after Close failed: %v", err)
	}
	_ = artifact.Body.Close()
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL+"/missing.whl")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch = %v, want ErrNotFound", err)
	}
}

func TestFetchNotFoundNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(time.Millisecond))
	_, err := f.Fetch(context.Background(), server.URL+"/missing.whl")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch = %v, want ErrNotFound", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestFetchRateLimitRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(10 * time.Millisecond))
	artifact, err := f.Fetch(context.Background(), server.URL+"/pkg.tar.gz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchServerErrorRetryExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	_, err := f.Fetch(context.Background(), server.URL+"/pkg.tar.gz")
	if !errors.Is(err, ErrUpstreamDown) {
		t.Fatalf("Fetch = %v, want ErrUpstreamDown", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", attempts)
	}
}

func TestFetchContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(WithBaseDelay(time.Second))
	_, err := f.Fetch(ctx, server.URL+"/pkg.tar.gz")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch = %v, want context.Canceled", err)
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("no access"))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL+"/pkg.whl")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "no access") {
		t.Errorf("error = %v, want status and body in message", err)
	}
}

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Length", "12345")
		w.Header().Set("Content-Type", "application/zip")
	}))
	defer server.Close()

	f := NewFetcher()
	size, contentType, err := f.Head(context.Background(), server.URL+"/pkg.whl")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if size != 12345 {
		t.Errorf("size = %d, want 12345", size)
	}
	if contentType != "application/zip" {
		t.Errorf("contentType = %q, want %q", contentType, "application/zip")
	}
}

func TestHeadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	_, _, err := f.Head(context.Background(), server.URL+"/missing.whl")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Head = %v, want ErrNotFound", err)
	}
}

func TestDownloadVerifiesDigest(t *testing.T) {
	content := []byte("wheel bytes")
	sum := sha256.Sum256(content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := NewFetcher()
	file := pypi.DistributionFile{
		Filename: "demo-1.0-py3-none-any.whl",
		URL:      server.URL + "/demo-1.0-py3-none-any.whl",
		Hashes:   map[string]string{"sha256": hex.EncodeToString(sum[:])},
	}

	artifact, err := f.Download(context.Background(), file)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll = %v, want clean EOF on matching digest", err)
	}
	if string(body) != string(content) {
		t.Errorf("body = %q, want %q", body, content)
	}
}

func TestDownloadDigestMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered bytes"))
	}))
	defer server.Close()

	f := NewFetcher()
	file := pypi.DistributionFile{
		Filename: "demo-1.0.tar.gz",
		URL:      server.URL + "/demo-1.0.tar.gz",
		Hashes:   map[string]string{"sha256": strings.Repeat("ab", 32)},
	}

	artifact, err := f.Download(context.Background(), file)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	_, err = io.ReadAll(artifact.Body)
	if !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("ReadAll = %v, want ErrDigestMismatch", err)
	}
}

func TestDownloadPrefersStrongestHash(t *testing.T) {
	content := []byte("some sdist")
	sum := sha256.Sum256(content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := NewFetcher()
	file := pypi.DistributionFile{
		URL: server.URL + "/demo-1.0.zip",
		Hashes: map[string]string{
			// The md5 digest is wrong; sha256 must win.
			"md5":    strings.Repeat("00", 16),
			"sha256": hex.EncodeToString(sum[:]),
		},
	}

	artifact, err := f.Download(context.Background(), file)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if _, err := io.ReadAll(artifact.Body); err != nil {
		t.Errorf("ReadAll = %v, want sha256 to take precedence over md5", err)
	}
}

func TestDownloadNoHashes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("unverified"))
	}))
	defer server.Close()

	f := NewFetcher()
	file := pypi.DistributionFile{URL: server.URL + "/demo-1.0.egg"}

	artifact, err := f.Download(context.Background(), file)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "unverified" {
		t.Errorf("body = %q, want %q", body, "unverified")
	}
}
