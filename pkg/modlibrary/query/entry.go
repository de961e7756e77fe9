package query

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry is the light-weight row a search returns. Heavy columns are loaded
// only through the store's point lookup.
type Entry struct {
	Path        string
	Title       string
	FileSize    int64
	FileDate    time.Time
	Fingerprint []byte
}

// DisplayTitle is the stored title, or the file name without extension when
// the module has none.
func (e Entry) DisplayTitle() string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	base := path.Base(e.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (e Entry) SizeString() string {
	return FormatSize(e.FileSize)
}

func (e Entry) HumanSize() string {
	return humanize.IBytes(uint64(max(e.FileSize, 0)))
}

func (e Entry) DateString() string {
	if e.FileDate.IsZero() {
		return ""
	}
	return e.FileDate.Local().Format("2006-01-02 15:04")
}

// FormatSize prints n as "N B", "N KiB" or "N.NN MiB".
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%d KiB", n/1024)
	}
	return fmt.Sprintf("%d.%02d MiB", n/(1024*1024), ((n/1024)%1024)*100/1024)
}

// Result is an entry with its match score. The score is meaningful only when
// Scored is true.
type Result struct {
	Entry
	Match  int
	Scored bool
}

// ResultSet is computed once per search and never modified afterwards; a new
// search produces a new set.
type ResultSet struct {
	Results []Result
	// Scored reports whether the search carried a query fingerprint.
	Scored bool
}

func (rs *ResultSet) Len() int { return len(rs.Results) }

// Single returns the only result of a filtered search, which callers open
// directly.
func (rs *ResultSet) Single(c Criteria) (Result, bool) {
	if c.ShowAll || len(rs.Results) != 1 {
		return Result{}, false
	}
	return rs.Results[0], true
}
