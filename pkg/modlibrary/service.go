package modlibrary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/ModLibrary/pkg/logger"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/playlist"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
	"github.com/himanishpuri/ModLibrary/pkg/utils"
)

// modService is the default implementation of the Service interface.
type modService struct {
	storage Storage
	decoder Decoder
	matcher *fingerprint.Matcher
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewRegistry()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = fingerprint.DefaultSampleRate
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &modService{
		storage: stor,
		decoder: cfg.Decoder,
		matcher: fingerprint.NewMatcher(cfg.Matcher),
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// AddModule inserts a new record, or refreshes the existing one when the
// file content changed. An insert rejected by the store's uniqueness
// constraint is retried as an update.
func (s *modService) AddModule(ctx context.Context, path string) (AddResult, error) {
	return s.upsert(ctx, path, false)
}

// UpdateModule refreshes the record stored under path. A path without a
// record is NotAdded.
func (s *modService) UpdateModule(ctx context.Context, path string) (AddResult, error) {
	return s.upsert(ctx, path, true)
}

func (s *modService) upsert(ctx context.Context, path string, rescan bool) (AddResult, error) {
	if err := ctx.Err(); err != nil {
		return NotAdded, err
	}
	key, err := utils.NormalizePath(path)
	if err != nil {
		return IOError, err
	}
	native := utils.NativePath(key)

	info, err := os.Stat(native)
	if err != nil {
		return IOError, fmt.Errorf("stat %s: %w", native, err)
	}
	if info.IsDir() {
		return IOError, fmt.Errorf("%s is a directory", native)
	}
	data, err := os.ReadFile(native)
	if err != nil {
		return IOError, fmt.Errorf("reading %s: %w", native, err)
	}

	hash := contentHash(data)
	oldHash, oldArtist, exists, err := s.storage.Lookup(ctx, key)
	if err != nil {
		return NotAdded, fmt.Errorf("lookup %s: %w", key, err)
	}
	if exists && oldHash == hash {
		s.log.Debugf("Unchanged: %s", key)
		return NoChange, nil
	}

	rec := &Record{
		Hash:     hash,
		Path:     key,
		FileSize: int64(len(data)),
		FileDate: info.ModTime(),
	}
	if err := s.extract(data, rec); err != nil {
		s.log.Warnf("Could not process %s: %v", key, err)
		return NotAdded, fmt.Errorf("processing %s: %w", key, err)
	}
	if rec.Artist == "" {
		rec.Artist = oldArtist
	}

	if rescan || exists {
		return s.update(ctx, key, rec)
	}

	err = s.storage.Insert(ctx, rec)
	switch {
	case err == nil:
		s.log.Infof("Added %s", key)
		return Added, nil
	case errors.Is(err, storage.ErrConstraint):
		s.log.Debugf("Insert of %s rejected, updating instead", key)
		return s.update(ctx, key, rec)
	}
	return NotAdded, fmt.Errorf("insert %s: %w", key, err)
}

func (s *modService) update(ctx context.Context, key string, rec *Record) (AddResult, error) {
	if err := s.storage.Update(ctx, key, rec); err != nil {
		return NotAdded, fmt.Errorf("update %s: %w", key, err)
	}
	s.log.Infof("Updated %s", key)
	return Updated, nil
}

func (s *modService) UpdateCustom(ctx context.Context, path, artist, personalComments string) error {
	key, err := utils.NormalizePath(path)
	if err != nil {
		return err
	}
	return s.storage.UpdateCustom(ctx, key, artist, personalComments)
}

func (s *modService) GetModule(ctx context.Context, path string) (*Record, error) {
	key, err := utils.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	return s.storage.Get(ctx, key)
}

// GetFingerprint returns the stored fingerprint in its printable form. A
// record without a fingerprint yields an empty string.
func (s *modService) GetFingerprint(ctx context.Context, path string) (string, error) {
	key, err := utils.NormalizePath(path)
	if err != nil {
		return "", err
	}
	blob, err := s.storage.Fingerprint(ctx, key)
	if err != nil {
		return "", err
	}
	return fingerprint.Printable(blob), nil
}

func (s *modService) RemoveModule(ctx context.Context, path string) (bool, error) {
	key, err := utils.NormalizePath(path)
	if err != nil {
		return false, err
	}
	removed, err := s.storage.Remove(ctx, key)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Infof("Removed %s", key)
	}
	return removed, nil
}

// Search runs the filters in the store and, when the criteria carry a
// fingerprint, scores every result against it. The returned set is never
// modified afterwards.
func (s *modService) Search(ctx context.Context, c query.Criteria) (*query.ResultSet, error) {
	entries, err := s.storage.Search(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]query.Result, len(entries))
	for i, e := range entries {
		results[i] = query.Result{Entry: e}
	}
	if len(c.Fingerprint) == 0 {
		return &query.ResultSet{Results: results}, nil
	}

	cands := make([]fingerprint.Candidate, len(entries))
	for i, e := range entries {
		cands[i] = fingerprint.Candidate{Key: e.Path, Fingerprint: e.Fingerprint}
	}
	matches, err := s.matcher.Rank(ctx, c.Fingerprint, cands)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	for i, m := range matches {
		results[i].Match = m.Score
		results[i].Scored = m.Valid
	}
	s.log.Debugf("Scored %d results", len(results))
	return &query.ResultSet{Results: results, Scored: true}, nil
}

// ExportPlaylist writes results as a PLS playlist in their current order.
func (s *modService) ExportPlaylist(w io.Writer, results []query.Result) error {
	items := make([]playlist.Item, len(results))
	for i, r := range results {
		items[i] = playlist.Item{Path: r.Path, Title: r.DisplayTitle()}
	}
	return playlist.WritePLS(w, items)
}

// Close releases all resources held by the service.
func (s *modService) Close() error {
	return s.storage.Close()
}
