package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey int

const (
	SortNone SortKey = iota
	SortTitle
	SortSize
	SortDate
	SortMatch
	SortPath
)

func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "title":
		return SortTitle, nil
	case "size":
		return SortSize, nil
	case "date":
		return SortDate, nil
	case "match":
		return SortMatch, nil
	case "path", "filename":
		return SortPath, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

// Sorted returns a sorted copy of results. Titles compare case-insensitively
// with embedded numbers ordered by value. The sort is stable.
func Sorted(results []Result, key SortKey, descending bool) []Result {
	out := slices.Clone(results)
	if key == SortNone {
		return out
	}

	var cmpFn func(a, b Result) int
	switch key {
	case SortTitle:
		col := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
		cmpFn = func(a, b Result) int {
			return col.CompareString(a.DisplayTitle(), b.DisplayTitle())
		}
	case SortSize:
		cmpFn = func(a, b Result) int { return cmp.Compare(a.FileSize, b.FileSize) }
	case SortDate:
		cmpFn = func(a, b Result) int { return a.FileDate.Compare(b.FileDate) }
	case SortMatch:
		cmpFn = func(a, b Result) int { return cmp.Compare(a.Match, b.Match) }
	case SortPath:
		cmpFn = func(a, b Result) int { return strings.Compare(a.Path, b.Path) }
	default:
		return out
	}

	if descending {
		asc := cmpFn
		cmpFn = func(a, b Result) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, cmpFn)
	return out
}
