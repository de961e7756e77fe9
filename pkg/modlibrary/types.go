package modlibrary

import (
	"path"
	"strings"
	"time"
)

// AddResult is the outcome of adding or rescanning one file.
type AddResult int

const (
	NotAdded AddResult = iota // decode failure or rejected write
	IOError                   // the file could not be read
	Added
	Updated
	NoChange // content hash unchanged, nothing re-extracted
)

func (r AddResult) String() string {
	switch r {
	case NotAdded:
		return "not added"
	case IOError:
		return "I/O error"
	case Added:
		return "added"
	case Updated:
		return "updated"
	case NoChange:
		return "no change"
	}
	return "unknown"
}

func (r AddResult) IsError() bool { return r == NotAdded || r == IOError }
func (r AddResult) IsOK() bool    { return r == Added || r == Updated || r == NoChange }

// Record is everything the library stores about one module file.
type Record struct {
	Hash     string
	Path     string
	FileSize int64
	FileDate time.Time
	// EditDate is the release or last edit date embedded in the module,
	// zero when unknown.
	EditDate time.Time
	Format   string
	Title    string
	Duration time.Duration

	Channels    int
	Patterns    int
	Orders      int
	SubSongs    int
	Samples     int
	Instruments int

	SampleText     string
	InstrumentText string
	Comments       string
	Artist         string
	// PersonalComments is only ever written through UpdateCustom.
	PersonalComments string

	NoteData    []byte
	Fingerprint []byte
}

func (r *Record) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	base := path.Base(r.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Progress is reported once per file by the batch operations.
type Progress struct {
	Done  int
	Total int
	Path  string
	// Result is the outcome for Path.
	Result AddResult
}

type ProgressFunc func(Progress)

// ScanReport summarises a folder scan.
type ScanReport struct {
	RunID     string
	Scanned   int
	Added     int
	Updated   int
	Unchanged int
	Failed    int
	Cancelled bool
}

// MaintainReport summarises a maintenance sweep over all stored paths.
type MaintainReport struct {
	RunID     string
	Total     int
	Scanned   int
	Updated   int
	Removed   int
	Cancelled bool
}
