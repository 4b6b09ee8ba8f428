package pipeline

import "regexp"

// Changeset is the list of paths a worker resolved as modified by the
// triggering commit, passed down to every node so if-changeset-matches
// filters can gate execution.
type Changeset []string

// anyItemMatches reports whether any entry of the changeset contains a
// substring matching pattern. An empty changeset or an empty pattern always
// matches, mirroring any_item_matches' "no items is all changes, no
// criteria is all criteria" defaults. The match is a substring search
// (regexp.Regexp.MatchString), not an anchored match, matching Python's
// re.search semantics.
func anyItemMatches(items Changeset, pattern string) (bool, error) {
	if len(items) == 0 {
		return true, nil
	}
	if pattern == "" {
		return true, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if re.MatchString(item) {
			return true, nil
		}
	}
	return false, nil
}
