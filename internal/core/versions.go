package core

import "sort"

// SortVersionsDesc returns the release-map keys in descending lexicographic
// order. This is a plain string sort, not PEP 440 ordering: "2.0" sorts
// above "10.0". The misordering is long-standing observed behavior that
// downstream callers depend on, so it is kept rather than corrected.
func SortVersionsDesc(keys []string) []string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted
}

// LatestVersion selects the "latest" release under the same lexicographic
// rule. Returns "" for an empty set.
func LatestVersion(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	latest := keys[0]
	for _, k := range keys[1:] {
		if k > latest {
			latest = k
		}
	}
	return latest
}
