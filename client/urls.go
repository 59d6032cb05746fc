package client

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public registry.
const DefaultBaseURL = "https://pypi.org"

// URLs constructs endpoint URLs for a PyPI-compatible registry.
type URLs struct {
	base string
}

// NewURLs creates a URL builder rooted at baseURL.
// An empty baseURL selects the public registry.
func NewURLs(baseURL string) *URLs {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &URLs{base: strings.TrimSuffix(baseURL, "/")}
}

// Base returns the registry base URL without a trailing slash.
func (u *URLs) Base() string {
	return u.base
}

// ProjectJSON returns the project-level metadata endpoint. The response
// includes the full release map.
func (u *URLs) ProjectJSON(name string) string {
	return fmt.Sprintf("%s/pypi/%s/json", u.base, name)
}

// VersionJSON returns the version-level metadata endpoint. The response is
// scoped to one version and carries no release map.
func (u *URLs) VersionJSON(name, version string) string {
	return fmt.Sprintf("%s/pypi/%s/%s/json", u.base, name, version)
}

// Simple returns the PEP 503/691 file-index endpoint. The index only
// serves canonical names, so the name is normalized first.
func (u *URLs) Simple(name string) string {
	return fmt.Sprintf("%s/simple/%s/", u.base, NormalizeName(name))
}

// Search returns the HTML search endpoint with the query encoded.
func (u *URLs) Search(query string) string {
	return fmt.Sprintf("%s/search?q=%s", u.base, url.QueryEscape(query))
}

// Project returns the human-facing project page.
func (u *URLs) Project(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", u.base, name, version)
	}
	return fmt.Sprintf("%s/project/%s/", u.base, name)
}

// Documentation returns the conventional readthedocs URL for a package.
func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://%s.readthedocs.io/en/%s/", name, version)
	}
	return fmt.Sprintf("https://%s.readthedocs.io/", name)
}

// PURL returns the package-url identifier for a package or version.
func (u *URLs) PURL(name, version string) string {
	normalized := NormalizeName(name)
	if version != "" {
		return fmt.Sprintf("pkg:pypi/%s@%s", normalized, version)
	}
	return fmt.Sprintf("pkg:pypi/%s", normalized)
}

// NormalizeName converts a package name to its PEP 503 canonical form:
// lowercase, with runs of ".", "-", "_" collapsed to a single hyphen.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	sep := false
	for _, r := range name {
		if r == '.' || r == '-' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}
