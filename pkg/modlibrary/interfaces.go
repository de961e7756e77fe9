package modlibrary

import (
	"context"
	"io"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
)

type Service interface {
	// AddModule indexes the file at path. The error, if any, explains an
	// IOError or NotAdded result.
	AddModule(ctx context.Context, path string) (AddResult, error)
	// UpdateModule rescans a path that is expected to be stored already.
	UpdateModule(ctx context.Context, path string) (AddResult, error)
	UpdateCustom(ctx context.Context, path, artist, personalComments string) error
	GetModule(ctx context.Context, path string) (*Record, error)
	GetFingerprint(ctx context.Context, path string) (string, error)
	RemoveModule(ctx context.Context, path string) (bool, error)

	Search(ctx context.Context, c query.Criteria) (*query.ResultSet, error)
	ScanFolder(ctx context.Context, dir string, progress ProgressFunc) (ScanReport, error)
	Maintain(ctx context.Context, progress ProgressFunc) (MaintainReport, error)
	ExportPlaylist(w io.Writer, results []query.Result) error

	Close() error
}

type Storage interface {
	Insert(ctx context.Context, rec *Record) error
	Update(ctx context.Context, oldPath string, rec *Record) error
	UpdateCustom(ctx context.Context, path, artist, personalComments string) error
	Get(ctx context.Context, path string) (*Record, error)
	Lookup(ctx context.Context, path string) (hash, artist string, ok bool, err error)
	Fingerprint(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) (bool, error)
	Paths(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, c query.Criteria) ([]query.Entry, error)
	Close() error
}

// Decoder turns file contents into a playable module.
type Decoder interface {
	Decode(data []byte) (decoder.Module, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
