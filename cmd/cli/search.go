package main

import (
	"flag"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/notes"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
)

// searchOptions holds the raw search flags shared by search and export.
type searchOptions struct {
	text        string
	fields      string
	size        string
	length      string
	date        string
	released    string
	melody      string
	fingerprint string
	all         bool
	sortKey     string
	descending  bool
}

func bindSearchFlags(fs *flag.FlagSet) *searchOptions {
	o := &searchOptions{}
	fs.StringVar(&o.text, "text", "", "Free text term")
	fs.StringVar(&o.fields, "fields", "filename,title", "Fields the text term is matched against")
	fs.StringVar(&o.size, "size", "", "File size range min:max")
	fs.StringVar(&o.length, "length", "", "Duration range min:max")
	fs.StringVar(&o.date, "date", "", "File date range from:to")
	fs.StringVar(&o.released, "released", "", "Release date range from:to")
	fs.StringVar(&o.melody, "melody", "", "Pipe separated note step fragments")
	fs.StringVar(&o.fingerprint, "fingerprint", "", "Printable query fingerprint")
	fs.BoolVar(&o.all, "all", false, "Show every module")
	fs.StringVar(&o.sortKey, "sort", "", "Sort key")
	fs.BoolVar(&o.descending, "desc", false, "Sort descending")
	return o
}

// splitSpan splits "min:max". Either side may be empty.
func splitSpan(s string) (string, string, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("range %q must look like min:max", s)
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), nil
}

func parseSizeRange(s string) (query.Range[int64], error) {
	lo, hi, err := splitSpan(s)
	if err != nil {
		return query.Range[int64]{}, err
	}
	r := query.Between[int64](0, math.MaxInt64)
	if lo != "" {
		v, err := humanize.ParseBytes(lo)
		if err != nil {
			return r, err
		}
		r.Min = int64(v)
	}
	if hi != "" {
		v, err := humanize.ParseBytes(hi)
		if err != nil {
			return r, err
		}
		r.Max = int64(v)
	}
	return r, nil
}

func parseDurationRange(s string) (query.Range[time.Duration], error) {
	lo, hi, err := splitSpan(s)
	if err != nil {
		return query.Range[time.Duration]{}, err
	}
	r := query.Between[time.Duration](0, math.MaxInt64)
	if lo != "" {
		if r.Min, err = time.ParseDuration(lo); err != nil {
			return r, err
		}
	}
	if hi != "" {
		if r.Max, err = time.ParseDuration(hi); err != nil {
			return r, err
		}
	}
	return r, nil
}

// parseDateRange reads local calendar dates; the upper bound includes the
// whole day.
func parseDateRange(s string) (query.TimeRange, error) {
	lo, hi, err := splitSpan(s)
	if err != nil {
		return query.TimeRange{}, err
	}
	r := query.BetweenTimes(time.Unix(0, 0), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if lo != "" {
		if r.From, err = time.ParseInLocation(time.DateOnly, lo, time.Local); err != nil {
			return r, err
		}
	}
	if hi != "" {
		if r.To, err = time.ParseInLocation(time.DateOnly, hi, time.Local); err != nil {
			return r, err
		}
		r.To = r.To.Add(24*time.Hour - time.Second)
	}
	return r, nil
}

func (o *searchOptions) criteria() (query.Criteria, error) {
	c := query.Criteria{
		Text:    o.text,
		ShowAll: o.all,
	}
	if o.text != "" {
		c.Fields = query.ParseFields(o.fields)
	}

	var err error
	if o.size != "" {
		if c.Size, err = parseSizeRange(o.size); err != nil {
			return c, fmt.Errorf("size: %w", err)
		}
	}
	if o.length != "" {
		if c.Duration, err = parseDurationRange(o.length); err != nil {
			return c, fmt.Errorf("length: %w", err)
		}
	}
	if o.date != "" {
		if c.FileDate, err = parseDateRange(o.date); err != nil {
			return c, fmt.Errorf("date: %w", err)
		}
	}
	if o.released != "" {
		if c.ReleaseDate, err = parseDateRange(o.released); err != nil {
			return c, fmt.Errorf("released: %w", err)
		}
	}
	if c.Melodies, err = notes.ParseMelodies(o.melody); err != nil {
		return c, err
	}
	if o.fingerprint != "" {
		blob, err := fingerprint.ParsePrintable(strings.TrimSpace(o.fingerprint))
		if err != nil {
			return c, err
		}
		if c.Fingerprint, err = fingerprint.Decode(blob); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (o *searchOptions) sorted(rs *query.ResultSet) ([]query.Result, error) {
	key, err := query.ParseSortKey(o.sortKey)
	if err != nil {
		return nil, err
	}
	if key == query.SortMatch && !rs.Scored {
		return nil, fmt.Errorf("sorting by match needs -fingerprint")
	}
	return query.Sorted(rs.Results, key, o.descending), nil
}
