// Package simple queries the per-package file-index endpoint.
//
// The index is served in two content types: the structured PEP 691 JSON
// form, preferred, and the legacy PEP 503 HTML form kept as a fallback.
// Both normalize into the same DistributionFile records; the HTML form
// simply knows less (no sizes, no yank status).
package simple

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/pypi/client"
	"github.com/git-pkgs/pypi/internal/core"
)

// Format selects which representation of the index to request.
type Format int

const (
	FormatJSON Format = iota
	FormatHTML
)

const (
	acceptJSON = "application/vnd.pypi.simple.v1+json"
	acceptHTML = "application/vnd.pypi.simple.v1+html"
)

var (
	anchorRE         = regexp.MustCompile(`(?i)<a[^>]*href="([^"]+)"[^>]*>(.+?)</a>`)
	requiresPythonRE = regexp.MustCompile(`data-requires-python="([^"]*)"`)
	fragmentHashRE   = regexp.MustCompile(`#(sha256|md5|sha1)=([a-fA-F0-9]+)`)
)

// Resolver queries the file index for a package.
type Resolver struct {
	client *client.Client
	urls   *client.URLs
}

// New creates a file-index resolver on top of the given transport.
func New(c *client.Client, urls *client.URLs) *Resolver {
	return &Resolver{client: c, urls: urls}
}

type indexResponse struct {
	Files []fileEntry `json:"files"`
}

type fileEntry struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Size           int64             `json:"size"`
	UploadTime     string            `json:"upload-time"`
	RequiresPython string            `json:"requires-python"`
	Hashes         map[string]string `json:"hashes"`

	// Yanked is false, true, or a reason string in PEP 691.
	Yanked any `json:"yanked"`
}

// List returns every published file for the package, across all versions.
// Filtering to one version is the caller's responsibility. Returns
// *core.NotFoundError on 404.
func (r *Resolver) List(ctx context.Context, name string, format Format) ([]core.DistributionFile, error) {
	if format == FormatHTML {
		return r.listHTML(ctx, name)
	}
	return r.listJSON(ctx, name)
}

func (r *Resolver) listJSON(ctx context.Context, name string) ([]core.DistributionFile, error) {
	var resp indexResponse
	err := r.client.GetJSON(ctx, r.urls.Simple(name), map[string]string{"Accept": acceptJSON}, &resp)
	if err != nil {
		return nil, r.classify(err, name)
	}

	files := make([]core.DistributionFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		yanked, reason := yankedInfo(f.Yanked)
		url, hashes := normalizeURL(f.URL, f.Hashes)
		files = append(files, core.DistributionFile{
			Filename:       f.Filename,
			URL:            url,
			Type:           core.FileTypeFromFilename(f.Filename),
			SizeBytes:      f.Size,
			UploadTime:     f.UploadTime,
			RequiresPython: f.RequiresPython,
			Hashes:         hashes,
			Yanked:         yanked,
			YankedReason:   reason,
		})
	}
	return files, nil
}

func (r *Resolver) listHTML(ctx context.Context, name string) ([]core.DistributionFile, error) {
	body, err := r.client.Get(ctx, r.urls.Simple(name), map[string]string{"Accept": acceptHTML})
	if err != nil {
		return nil, r.classify(err, name)
	}
	return parseHTML(string(body)), nil
}

func (r *Resolver) classify(err error, name string) error {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.IsNotFound() {
			return &core.NotFoundError{Name: name}
		}
		return err
	}
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("fetching distributions for %s: %w", name, err)
	}
	return &core.ParseError{Name: name, Err: err}
}

// parseHTML extracts anchor elements from the legacy index markup. The HTML
// form exposes no sizes and no yank status, so those stay at their zero
// values.
func parseHTML(html string) []core.DistributionFile {
	var files []core.DistributionFile
	for _, m := range anchorRE.FindAllStringSubmatch(html, -1) {
		tag, href, filename := m[0], m[1], strings.TrimSpace(m[2])

		requiresPython := ""
		if rp := requiresPythonRE.FindStringSubmatch(tag); rp != nil {
			requiresPython = rp[1]
		}

		url, hashes := normalizeURL(href, nil)
		files = append(files, core.DistributionFile{
			Filename:       filename,
			URL:            url,
			Type:           core.FileTypeFromFilename(filename),
			RequiresPython: requiresPython,
			Hashes:         hashes,
		})
	}
	return files
}

// normalizeURL strips any fragment from rawURL and merges hash information:
// structured hashes win, a #algo=digest fragment fills in when they are
// absent. Keys come out lowercase and the map is never nil.
func normalizeURL(rawURL string, structured map[string]string) (string, map[string]string) {
	hashes := make(map[string]string, len(structured))
	for alg, digest := range structured {
		hashes[strings.ToLower(alg)] = digest
	}

	if len(hashes) == 0 {
		if m := fragmentHashRE.FindStringSubmatch(rawURL); m != nil {
			hashes[strings.ToLower(m[1])] = m[2]
		}
	}

	if i := strings.Index(rawURL, "#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL, hashes
}

func yankedInfo(v any) (bool, string) {
	switch y := v.(type) {
	case bool:
		return y, ""
	case string:
		return true, y
	default:
		return false, ""
	}
}
