// Package meta fetches and normalizes project- and version-level metadata
// JSON into PackageRecords.
package meta

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/pypi/client"
	"github.com/git-pkgs/pypi/internal/core"
)

// Resolver queries the /pypi/{name}/json and /pypi/{name}/{version}/json
// endpoints. Every call re-fetches; nothing is cached between calls.
type Resolver struct {
	client *client.Client
	urls   *client.URLs
}

// New creates a metadata resolver on top of the given transport.
func New(c *client.Client, urls *client.URLs) *Resolver {
	return &Resolver{client: c, urls: urls}
}

// Document is a decoded metadata response. Releases is nil for
// version-level responses, which carry no release map.
type Document struct {
	Info     *Info                    `json:"info"`
	Releases map[string][]ReleaseFile `json:"releases"`
}

// Info is the metadata substructure. Fields the registry documents as
// required are still treated as optional: responses drift.
type Info struct {
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Summary        string         `json:"summary"`
	Description    string         `json:"description"`
	Author         string         `json:"author"`
	License        string         `json:"license"`
	HomePage       string         `json:"home_page"`
	ProjectURL     string         `json:"project_url"`
	ProjectURLs    map[string]any `json:"project_urls"` // values may be null
	RequiresDist   []string       `json:"requires_dist"`
	RequiresPython string         `json:"requires_python"`
}

// ReleaseFile is one uploaded file inside a release-map entry. Only the keys
// of the release map drive version selection; the entries ride along.
type ReleaseFile struct {
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	UploadTime string `json:"upload_time"`
	Yanked     bool   `json:"yanked"`
}

// FetchRaw retrieves the decoded metadata document for a package.
// An empty version selects the project-level endpoint, which includes the
// full release map. Returns *core.NotFoundError on 404, *core.ParseError
// when the body lacks the info substructure, a name-tagged wrap of
// *client.RequestError on network failure, and *client.HTTPError otherwise.
func (r *Resolver) FetchRaw(ctx context.Context, name, version string) (*Document, error) {
	url := r.urls.ProjectJSON(name)
	if version != "" {
		url = r.urls.VersionJSON(name, version)
	}

	var doc Document
	if err := r.client.GetJSON(ctx, url, nil, &doc); err != nil {
		return nil, r.classify(err, name, version)
	}
	if doc.Info == nil {
		return nil, &core.ParseError{Name: name, Err: errors.New("response has no info block")}
	}
	return &doc, nil
}

func (r *Resolver) classify(err error, name, version string) error {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.IsNotFound() {
			return &core.NotFoundError{Name: name, Version: version}
		}
		return err
	}
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("fetching metadata for %s: %w", name, err)
	}
	// 2xx with an undecodable body.
	return &core.ParseError{Name: name, Err: err}
}

// FetchRecord retrieves and normalizes a PackageRecord.
//
// Version selection: with a release map present, the lexicographically
// greatest key wins (see core.SortVersionsDesc for why that rule is kept);
// without one, the response's own declared version is used.
func (r *Resolver) FetchRecord(ctx context.Context, name, version string) (*core.PackageRecord, error) {
	doc, err := r.FetchRaw(ctx, name, version)
	if err != nil {
		return nil, err
	}
	info := doc.Info

	selected := info.Version
	if len(doc.Releases) > 0 {
		keys := make([]string, 0, len(doc.Releases))
		for k := range doc.Releases {
			keys = append(keys, k)
		}
		selected = core.LatestVersion(keys)
	}

	deps := make([]string, len(info.RequiresDist))
	copy(deps, info.RequiresDist)

	homepage := projectURLString(info.ProjectURLs, "Homepage")
	if homepage == "" {
		homepage = info.HomePage
	}

	projectURL := info.ProjectURL
	if projectURL == "" {
		projectURL = r.urls.Project(name, "")
	}

	return &core.PackageRecord{
		Name:           info.Name,
		Version:        selected,
		Summary:        info.Summary,
		Description:    info.Description,
		Author:         info.Author,
		License:        info.License,
		HomepageURL:    homepage,
		ProjectURL:     projectURL,
		RequiresPython: info.RequiresPython,
		Dependencies:   deps,
	}, nil
}

func projectURLString(urls map[string]any, key string) string {
	if s, ok := urls[key].(string); ok {
		return s
	}
	return ""
}

// MetadataMap exposes the raw info substructure for callers needing fields
// not modeled on PackageRecord. A response without an info key yields an
// empty map.
func (r *Resolver) MetadataMap(ctx context.Context, name, version string) (map[string]any, error) {
	url := r.urls.ProjectJSON(name)
	if version != "" {
		url = r.urls.VersionJSON(name, version)
	}

	var doc struct {
		Info map[string]any `json:"info"`
	}
	if err := r.client.GetJSON(ctx, url, nil, &doc); err != nil {
		return nil, r.classify(err, name, version)
	}
	if doc.Info == nil {
		return map[string]any{}, nil
	}
	return doc.Info, nil
}

// Dependencies returns the raw requirement-specifier list for a package.
// Absence collapses to an empty list: "package not found" and "no
// dependencies known" are equally actionable for the typical caller.
func (r *Resolver) Dependencies(ctx context.Context, name, version string) ([]string, error) {
	info, err := r.MetadataMap(ctx, name, version)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}

	raw, ok := info["requires_dist"].([]any)
	if !ok {
		return []string{}, nil
	}
	deps := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			deps = append(deps, s)
		}
	}
	return deps, nil
}

// Exists reports whether the package is present on the registry.
func (r *Resolver) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.FetchRaw(ctx, name, "")
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Versions returns all release-map keys sorted descending by the
// lexicographic rule. An absent package yields an empty list.
func (r *Resolver) Versions(ctx context.Context, name string) ([]string, error) {
	doc, err := r.FetchRaw(ctx, name, "")
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(doc.Releases))
	for k := range doc.Releases {
		keys = append(keys, k)
	}
	return core.SortVersionsDesc(keys), nil
}
