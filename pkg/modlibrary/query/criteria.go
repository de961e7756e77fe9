// Package query describes library searches and the result entries they
// produce.
package query

import (
	"cmp"
	"strings"
	"time"
)

// Field selects a text column for free text search.
type Field uint

const (
	FieldFilename Field = 1 << iota
	FieldTitle
	FieldArtist
	FieldSampleText
	FieldInstrumentText
	FieldComments
	FieldPersonalComments
)

const (
	FieldNone Field = 0
	FieldAll  Field = FieldFilename | FieldTitle | FieldArtist | FieldSampleText |
		FieldInstrumentText | FieldComments | FieldPersonalComments
)

var fieldColumns = []struct {
	field  Field
	column string
	name   string
}{
	{FieldFilename, "filename", "filename"},
	{FieldTitle, "title", "title"},
	{FieldArtist, "artist", "artist"},
	{FieldSampleText, "sample_text", "samples"},
	{FieldInstrumentText, "instrument_text", "instruments"},
	{FieldComments, "comments", "comments"},
	{FieldPersonalComments, "personal_comments", "personal"},
}

// Columns returns the database columns of the enabled fields.
func (f Field) Columns() []string {
	var cols []string
	for _, fc := range fieldColumns {
		if f&fc.field != 0 {
			cols = append(cols, fc.column)
		}
	}
	return cols
}

// ParseFields maps a comma separated list such as "title,artist" to a
// Field set. Unknown names are ignored; "all" enables every field.
func ParseFields(list string) Field {
	var f Field
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			return FieldAll
		}
		for _, fc := range fieldColumns {
			if fc.name == name || fc.column == name {
				f |= fc.field
			}
		}
	}
	return f
}

// Range is an inclusive filter. A disabled range matches everything.
type Range[T cmp.Ordered] struct {
	Min, Max T
	Enabled  bool
}

func Between[T cmp.Ordered](a, b T) Range[T] {
	return Range[T]{Min: a, Max: b, Enabled: true}
}

// Normalize swaps the bounds when Min is greater than Max.
func (r Range[T]) Normalize() Range[T] {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

// TimeRange is Range for timestamps.
type TimeRange struct {
	From, To time.Time
	Enabled  bool
}

func BetweenTimes(a, b time.Time) TimeRange {
	return TimeRange{From: a, To: b, Enabled: true}
}

func (r TimeRange) Normalize() TimeRange {
	if r.From.After(r.To) {
		r.From, r.To = r.To, r.From
	}
	return r
}

// Criteria is one search request.
type Criteria struct {
	Text   string
	Fields Field

	Size        Range[int64]
	Duration    Range[time.Duration]
	FileDate    TimeRange
	ReleaseDate TimeRange

	// Melodies are literal note-sequence fragments that must all occur.
	Melodies [][]byte
	// Fingerprint is the decoded query fingerprint; when set every result
	// is scored against it.
	Fingerprint []uint32

	// ShowAll ignores every filter above.
	ShowAll bool
}

// HasTextFilter reports whether the text term restricts the result.
func (c Criteria) HasTextFilter() bool {
	return !c.ShowAll && c.Fields != FieldNone
}

// LikePattern escapes SQL LIKE wildcards in text with a backslash, turns
// the user wildcards * and ? into % and _, and wraps the result in %.
func LikePattern(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte('%')
	for _, r := range text {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '%':
			b.WriteString(`\%`)
		case '_':
			b.WriteString(`\_`)
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('%')
	return b.String()
}
