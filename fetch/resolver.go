package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/pypi"
	"github.com/git-pkgs/pypi/client"
)

// ErrNoDistribution is returned when no published file matches the
// requested version and preference.
var ErrNoDistribution = errors.New("no matching distribution")

// Index lists published files for a package. Satisfied by *pypi.Client.
type Index interface {
	GetPackageDistributions(ctx context.Context, name string) ([]pypi.DistributionFile, error)
}

// Resolver picks a concrete distribution file for a package version from
// the file index, so it can be handed to a Fetcher.
type Resolver struct {
	index Index
}

// NewResolver creates a resolver over the given file index.
func NewResolver(index Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve returns the distribution file for (name, version), preferring the
// given file type. When no file of the preferred type exists, wheels are
// tried first, then sdists, then whatever is left. Yanked files are only
// chosen when nothing else matches the version.
func (r *Resolver) Resolve(ctx context.Context, name, version string, prefer pypi.FileType) (*pypi.DistributionFile, error) {
	files, err := r.index.GetPackageDistributions(ctx, name)
	if err != nil {
		return nil, err
	}

	var matching []pypi.DistributionFile
	var yanked []pypi.DistributionFile
	for _, f := range files {
		if !matchesVersion(f.Filename, name, version) {
			continue
		}
		if f.Yanked {
			yanked = append(yanked, f)
			continue
		}
		matching = append(matching, f)
	}
	if len(matching) == 0 {
		matching = yanked
	}
	if len(matching) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoDistribution, name, version)
	}

	order := []pypi.FileType{prefer, pypi.FileTypeWheel, pypi.FileTypeSdist}
	for _, ft := range order {
		if ft == "" {
			continue
		}
		for i := range matching {
			if matching[i].Type == ft {
				return &matching[i], nil
			}
		}
	}
	return &matching[0], nil
}

// matchesVersion reports whether a distribution filename belongs to the
// given version. Wheel filenames use underscores where the project name has
// hyphens, so both spellings are tried.
func matchesVersion(filename, name, version string) bool {
	f := strings.ToLower(filename)
	v := strings.ToLower(version)
	normalized := client.NormalizeName(name)
	underscored := strings.ReplaceAll(normalized, "-", "_")

	for _, dist := range []string{normalized, underscored} {
		prefix := dist + "-" + v
		if strings.HasPrefix(f, prefix+"-") || strings.HasPrefix(f, prefix+".") {
			return true
		}
	}
	return false
}
