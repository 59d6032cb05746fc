// Package pypi provides a client for fetching package metadata from the
// Python Package Index.
//
// The client speaks three upstream surfaces: the JSON metadata API
// (project- and version-level), the PEP 503/691 Simple file index, and the
// HTML search pages (PyPI has no structured search API, so search results
// are scraped on a best-effort basis).
//
// Basic usage:
//
//	c := pypi.New("", nil)
//	defer c.Close()
//
//	rec, err := c.GetPackageInfo(ctx, "requests", "")
//	if errors.Is(err, pypi.ErrNotFound) {
//		// package does not exist; a normal branch, not a failure
//	}
//
// Absence (HTTP 404), malformed responses, upstream errors, and transient
// network failures surface as distinct error types so callers can react to
// each: *NotFoundError (unwraps to ErrNotFound), *ParseError, *HTTPError,
// and *RequestError.
//
// Nothing is cached and nothing is retried: every call re-fetches, and
// retry policy belongs to the caller. One Client is safe for concurrent
// use; the pooled HTTP transport is the only shared state.
package pypi

import (
	"context"
	"fmt"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/pypi/client"
	"github.com/git-pkgs/pypi/internal/core"
	"github.com/git-pkgs/pypi/internal/meta"
	"github.com/git-pkgs/pypi/internal/search"
	"github.com/git-pkgs/pypi/internal/simple"
)

// Re-export the domain model from internal/core.
type (
	// PackageRecord is the canonical description of one package version.
	PackageRecord = core.PackageRecord

	// SearchResult is one entry scraped from the search surface.
	SearchResult = core.SearchResult

	// DistributionFile is one published artifact from the file index.
	DistributionFile = core.DistributionFile

	// FileType classifies a distribution file by filename suffix.
	FileType = core.FileType

	// NotFoundError marks a resource the registry confirmed absent.
	NotFoundError = core.NotFoundError

	// ParseError marks a 2xx response whose body lacked expected structure.
	ParseError = core.ParseError
)

// Re-export transport types from client.
type (
	// Transport is the HTTP client shared by all resolvers.
	Transport = client.Client

	// Option configures a Transport.
	Option = client.Option

	// HTTPError represents a non-2xx, non-404 upstream response.
	HTTPError = client.HTTPError

	// RequestError represents a network-level transient failure.
	RequestError = client.RequestError

	// URLs constructs endpoint URLs for a PyPI-compatible registry.
	URLs = client.URLs
)

// Re-export constants.
const (
	FileTypeWheel   = core.FileTypeWheel
	FileTypeSdist   = core.FileTypeSdist
	FileTypeEgg     = core.FileTypeEgg
	FileTypeUnknown = core.FileTypeUnknown

	// UnknownVersion is the placeholder version on search results when
	// nothing version-shaped could be extracted.
	UnknownVersion = core.UnknownVersion

	// DefaultSearchLimit caps search results when callers have no
	// preference. A limit of 0 is valid and yields an empty list.
	DefaultSearchLimit = search.DefaultLimit

	// DefaultBaseURL is the public registry.
	DefaultBaseURL = client.DefaultBaseURL
)

// ErrNotFound is the sentinel for resources the registry confirmed absent.
// Branch with errors.Is; absence is a normal outcome, not a failure.
var ErrNotFound = client.ErrNotFound

// Transport construction and options, re-exported from client.
var (
	NewTransport        = client.NewClient
	DefaultTransport    = client.DefaultClient
	WithTimeout         = client.WithTimeout
	WithFollowRedirects = client.WithFollowRedirects
	WithUserAgent       = client.WithUserAgent
	WithHTTPClient      = client.WithHTTPClient
)

// NormalizeName converts a package name to its PEP 503 canonical form.
var NormalizeName = client.NormalizeName

// Client is the facade over the metadata, search, and file-index resolvers.
// It adds no logic of its own: operations delegate and surface the
// resolvers' results and error types unchanged.
type Client struct {
	http  *client.Client
	urls  *client.URLs
	meta  *meta.Resolver
	seek  *search.Engine
	index *simple.Resolver
}

// New creates a client for the registry at baseURL. An empty baseURL
// selects the public registry; a nil transport gets the defaults.
func New(baseURL string, t *Transport) *Client {
	if t == nil {
		t = client.DefaultClient()
	}
	urls := client.NewURLs(baseURL)
	return &Client{
		http:  t,
		urls:  urls,
		meta:  meta.New(t, urls),
		seek:  search.New(t, urls),
		index: simple.New(t, urls),
	}
}

// Close releases the transport's pooled connections. The client remains
// usable; a later call re-opens the transport lazily.
func (c *Client) Close() {
	c.http.Close()
}

// URLs returns the endpoint builder for this client's registry.
func (c *Client) URLs() *URLs {
	return c.urls
}

// GetPackageInfo fetches and normalizes metadata for a package.
// An empty version selects the latest release (chosen by the documented
// lexicographic rule when a release map is present).
func (c *Client) GetPackageInfo(ctx context.Context, name, version string) (*PackageRecord, error) {
	return c.meta.FetchRecord(ctx, name, version)
}

// PackageExists reports whether the package is present on the registry.
func (c *Client) PackageExists(ctx context.Context, name string) (bool, error) {
	return c.meta.Exists(ctx, name)
}

// VerifyPackageName is an alias for PackageExists, kept for callers that
// expect the verification verb.
func (c *Client) VerifyPackageName(ctx context.Context, name string) (bool, error) {
	return c.meta.Exists(ctx, name)
}

// GetPackageMetadata returns the raw info substructure of the metadata
// response, for callers needing fields not modeled on PackageRecord.
func (c *Client) GetPackageMetadata(ctx context.Context, name, version string) (map[string]any, error) {
	return c.meta.MetadataMap(ctx, name, version)
}

// SearchPackages scrapes the search surface for query, returning up to
// limit results. Zero results is success; search completeness is
// best-effort by design.
func (c *Client) SearchPackages(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return c.seek.Search(ctx, query, limit)
}

// GetPackageDependencies returns the raw requirement-specifier strings for
// a package, in registry order, unparsed. An absent package yields an empty
// list rather than ErrNotFound.
func (c *Client) GetPackageDependencies(ctx context.Context, name, version string) ([]string, error) {
	return c.meta.Dependencies(ctx, name, version)
}

// GetPackageDistributions lists every published file for the package via
// the structured JSON index. Entries span all versions; filtering to one
// version is the caller's responsibility.
func (c *Client) GetPackageDistributions(ctx context.Context, name string) ([]DistributionFile, error) {
	return c.index.List(ctx, name, simple.FormatJSON)
}

// GetPackageDistributionsHTML lists published files via the legacy HTML
// index. Sizes and yank status are unavailable in this form; use it when
// the structured index misbehaves.
func (c *Client) GetPackageDistributionsHTML(ctx context.Context, name string) ([]DistributionFile, error) {
	return c.index.List(ctx, name, simple.FormatHTML)
}

// GetPackageVersions returns all known release versions, sorted descending
// by the documented lexicographic rule. An absent package yields an empty
// list.
func (c *Client) GetPackageVersions(ctx context.Context, name string) ([]string, error) {
	return c.meta.Versions(ctx, name)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a pkg:pypi Package URL into its components.
// Non-pypi PURLs are rejected.
func ParsePURL(s string) (*PURL, error) {
	p, err := purl.Parse(s)
	if err != nil {
		return nil, err
	}
	if p.Type != "pypi" {
		return nil, fmt.Errorf("unsupported purl type %q", p.Type)
	}
	return p, nil
}

// GetPackageInfoFromPURL fetches package metadata addressed by a
// pkg:pypi/<name>[@version] Package URL.
func (c *Client) GetPackageInfoFromPURL(ctx context.Context, s string) (*PackageRecord, error) {
	p, err := ParsePURL(s)
	if err != nil {
		return nil, err
	}
	return c.GetPackageInfo(ctx, p.Name, p.Version)
}
