package modlibrary

import (
	"context"
	"time"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens the record store at dbPath. A postgres:// DSN
// selects PostgreSQL instead.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func toStorageModule(r *Record) *storage.Module {
	return &storage.Module{
		Hash:             r.Hash,
		Filename:         r.Path,
		FileSize:         r.FileSize,
		FileDate:         storage.StoredTime(r.FileDate),
		EditDate:         storage.StoredTime(r.EditDate),
		Format:           r.Format,
		Title:            r.Title,
		Length:           r.Duration.Milliseconds(),
		NumChannels:      r.Channels,
		NumPatterns:      r.Patterns,
		NumOrders:        r.Orders,
		NumSubSongs:      r.SubSongs,
		NumSamples:       r.Samples,
		NumInstruments:   r.Instruments,
		SampleText:       r.SampleText,
		InstrumentText:   r.InstrumentText,
		Comments:         r.Comments,
		Artist:           r.Artist,
		PersonalComments: r.PersonalComments,
		Fingerprint:      r.Fingerprint,
		NoteData:         r.NoteData,
	}
}

func fromStorageModule(m *storage.Module) *Record {
	return &Record{
		Hash:             m.Hash,
		Path:             m.Filename,
		FileSize:         m.FileSize,
		FileDate:         m.FileDate,
		EditDate:         m.EditDate,
		Format:           m.Format,
		Title:            m.Title,
		Duration:         time.Duration(m.Length) * time.Millisecond,
		Channels:         m.NumChannels,
		Patterns:         m.NumPatterns,
		Orders:           m.NumOrders,
		SubSongs:         m.NumSubSongs,
		Samples:          m.NumSamples,
		Instruments:      m.NumInstruments,
		SampleText:       m.SampleText,
		InstrumentText:   m.InstrumentText,
		Comments:         m.Comments,
		Artist:           m.Artist,
		PersonalComments: m.PersonalComments,
		NoteData:         m.NoteData,
		Fingerprint:      m.Fingerprint,
	}
}

func (s *storageAdapter) Insert(ctx context.Context, rec *Record) error {
	return s.db.Insert(ctx, toStorageModule(rec))
}

func (s *storageAdapter) Update(ctx context.Context, oldPath string, rec *Record) error {
	return s.db.Update(ctx, oldPath, toStorageModule(rec))
}

func (s *storageAdapter) UpdateCustom(ctx context.Context, path, artist, personalComments string) error {
	return s.db.UpdateCustom(ctx, path, artist, personalComments)
}

func (s *storageAdapter) Get(ctx context.Context, path string) (*Record, error) {
	m, err := s.db.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return fromStorageModule(m), nil
}

func (s *storageAdapter) Lookup(ctx context.Context, path string) (string, string, bool, error) {
	return s.db.Lookup(ctx, path)
}

func (s *storageAdapter) Fingerprint(ctx context.Context, path string) ([]byte, error) {
	return s.db.Fingerprint(ctx, path)
}

func (s *storageAdapter) Remove(ctx context.Context, path string) (bool, error) {
	return s.db.Remove(ctx, path)
}

func (s *storageAdapter) Paths(ctx context.Context) ([]string, error) {
	return s.db.Paths(ctx)
}

func (s *storageAdapter) Count(ctx context.Context) (int64, error) {
	return s.db.Count(ctx)
}

func (s *storageAdapter) Search(ctx context.Context, c query.Criteria) ([]query.Entry, error) {
	return s.db.Search(ctx, c)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
