// Package core provides the domain model shared by the PyPI resolvers.
package core

import "strings"

// PackageRecord is the canonical description of one package version,
// normalized from the registry's project- or version-level JSON.
// Records are built fresh per fetch and never mutated afterwards.
type PackageRecord struct {
	Name        string // registry-assigned canonical identifier
	Version     string // raw registry version string, not necessarily PEP 440
	Summary     string
	Description string
	Author      string
	License     string // free text, opaque to this module
	HomepageURL string
	ProjectURL  string

	// RequiresPython is the declared interpreter constraint, opaque here.
	RequiresPython string

	// Dependencies holds raw requirement-specifier strings in the registry's
	// emission order. Duplicates are kept: extras-qualified entries may
	// legitimately repeat a name.
	Dependencies []string
}

// SearchResult is one entry scraped from the search surface.
type SearchResult struct {
	Name    string
	Version string // best-effort; "unknown" when nothing version-shaped was found
	Summary string
	Score   float64 // the HTML surface exposes no score, so normally 0
}

// UnknownVersion is the placeholder used when no version could be extracted
// from a search result.
const UnknownVersion = "unknown"

// FileType classifies a distribution file by its filename suffix.
type FileType string

const (
	FileTypeWheel   FileType = "bdist_wheel"
	FileTypeSdist   FileType = "sdist"
	FileTypeEgg     FileType = "bdist_egg"
	FileTypeUnknown FileType = "unknown"
)

// FileTypeFromFilename derives the file type purely from the filename suffix.
func FileTypeFromFilename(filename string) FileType {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		return FileTypeWheel
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".zip"):
		return FileTypeSdist
	case strings.HasSuffix(filename, ".egg"):
		return FileTypeEgg
	default:
		return FileTypeUnknown
	}
}

// DistributionFile is one published artifact from the file-index endpoint.
// Entries are scoped to a package name, not a version: the index lists every
// version's files together and filtering is the caller's job.
type DistributionFile struct {
	Filename string
	URL      string // fragment stripped
	Type     FileType

	// SizeBytes is 0 when the source format carries no size (the HTML index).
	SizeBytes int64

	UploadTime     string // raw registry timestamp, empty if unavailable
	RequiresPython string

	// Hashes maps lowercase algorithm identifiers ("sha256", "md5", "sha1")
	// to hex digests. Never nil; empty when nothing is known.
	Hashes map[string]string

	Yanked       bool
	YankedReason string
}
