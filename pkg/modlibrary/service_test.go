package modlibrary

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/ModLibrary/pkg/logger"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder/decodertest"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
	"github.com/himanishpuri/ModLibrary/pkg/utils"
)

func setupService(t *testing.T) (Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewService(
		WithDBPath(filepath.Join(dir, "db", "lib.sqlite")),
		WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	files := filepath.Join(dir, "mods")
	require.NoError(t, utils.MakeDir(files))
	return svc, files
}

func writeModule(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestAddThenAddIsNoChange(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	path := writeModule(t, dir, "run.mod", decodertest.MOD(decodertest.Simple("run", 61, 63, 60)))

	res, err := svc.AddModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Added, res)

	res, err = svc.AddModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, NoChange, res)
	assert.True(t, res.IsOK())
	assert.False(t, res.IsError())
}

func TestAddModuleStoresExtractedFields(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	data := decodertest.MOD(decodertest.Simple("stored", 61, 63, 60))
	path := writeModule(t, dir, "stored.mod", data)

	_, err := svc.AddModule(ctx, path)
	require.NoError(t, err)

	rec, err := svc.GetModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "stored", rec.Title)
	assert.Equal(t, "mod", rec.Format)
	assert.Equal(t, int64(len(data)), rec.FileSize)
	assert.Equal(t, 4, rec.Channels)
	assert.Equal(t, 1, rec.Orders)
	assert.Equal(t, 1, rec.SubSongs)
	assert.Equal(t, contentHash(data), rec.Hash)
	assert.Equal(t, "square\n", rec.SampleText[:7])
	assert.NotEmpty(t, rec.Fingerprint)
	assert.Equal(t, []byte{61, 2, 0xFD, 0xC4, 0xC4, 0xC4}, rec.NoteData)
	assert.InDelta(t, 7.68, rec.Duration.Seconds(), 0.001)
	assert.False(t, strings.Contains(rec.Path, `\`))
}

func TestRescanKeepsArtistAndPersonalComments(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	path := writeModule(t, dir, "tune.mod", decodertest.MOD(decodertest.Simple("tune", 61)))

	_, err := svc.AddModule(ctx, path)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateCustom(ctx, path, "Someone", "favourite"))

	writeModule(t, dir, "tune.mod", decodertest.MOD(decodertest.Simple("tune v2", 61, 65)))
	res, err := svc.AddModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Updated, res)

	rec, err := svc.GetModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "tune v2", rec.Title)
	assert.Equal(t, "Someone", rec.Artist)
	assert.Equal(t, "favourite", rec.PersonalComments)
}

func TestUpdateModuleWithoutRecord(t *testing.T) {
	svc, dir := setupService(t)
	path := writeModule(t, dir, "new.mod", decodertest.MOD(decodertest.Simple("new", 61)))

	res, err := svc.UpdateModule(context.Background(), path)
	assert.Equal(t, NotAdded, res)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddModuleFailures(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)

	res, err := svc.AddModule(ctx, filepath.Join(dir, "missing.mod"))
	assert.Equal(t, IOError, res)
	assert.Error(t, err)

	path := writeModule(t, dir, "notes.txt", []byte("definitely not a module"))
	res, err = svc.AddModule(ctx, path)
	assert.Equal(t, NotAdded, res)
	assert.ErrorIs(t, err, decoder.ErrUnsupportedFormat)

	_, err = svc.GetModule(ctx, path)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoveModule(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	path := writeModule(t, dir, "gone.mod", decodertest.MOD(decodertest.Simple("gone", 61)))
	_, err := svc.AddModule(ctx, path)
	require.NoError(t, err)

	removed, err := svc.RemoveModule(ctx, path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.RemoveModule(ctx, path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestScanFolderAndMaintain(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	require.NoError(t, utils.MakeDir(filepath.Join(dir, "sub")))
	keep := writeModule(t, dir, "keep.mod", decodertest.MOD(decodertest.Simple("keep", 61)))
	change := writeModule(t, dir, filepath.Join("sub", "change.xm"), decodertest.XM(decodertest.Simple("change", 61, 62)))
	drop := writeModule(t, dir, "drop.mod", decodertest.MOD(decodertest.Simple("drop", 70)))
	writeModule(t, dir, "readme.txt", []byte("hello"))

	var seen int
	report, err := svc.ScanFolder(ctx, dir, func(p Progress) {
		seen++
		assert.Equal(t, 4, p.Total)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, seen)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.RunID)

	report, err = svc.ScanFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)

	writeModule(t, dir, filepath.Join("sub", "change.xm"), decodertest.XM(decodertest.Simple("changed", 61, 64)))
	require.NoError(t, os.Remove(drop))

	mreport, err := svc.Maintain(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, mreport.Total)
	assert.Equal(t, 3, mreport.Scanned)
	assert.Equal(t, 1, mreport.Updated)
	assert.Equal(t, 1, mreport.Removed)
	assert.False(t, mreport.Cancelled)

	_, err = svc.GetModule(ctx, drop)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	rec, err := svc.GetModule(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, "changed", rec.Title)
	_, err = svc.GetModule(ctx, keep)
	assert.NoError(t, err)
}

func TestScanFolderCancelled(t *testing.T) {
	svc, dir := setupService(t)
	writeModule(t, dir, "a.mod", decodertest.MOD(decodertest.Simple("a", 61)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.ScanFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Scanned)
}

func TestMaintainCancelledKeepsCompletedWork(t *testing.T) {
	svc, dir := setupService(t)
	a := writeModule(t, dir, "a.mod", decodertest.MOD(decodertest.Simple("a", 61)))
	b := writeModule(t, dir, "b.mod", decodertest.MOD(decodertest.Simple("b", 62)))
	for _, p := range []string{a, b} {
		_, err := svc.AddModule(context.Background(), p)
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(a))
	writeModule(t, dir, "b.mod", decodertest.MOD(decodertest.Simple("b changed", 62, 64)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	report, err := svc.Maintain(ctx, func(p Progress) {
		if p.Done == 1 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Removed)
	assert.Zero(t, report.Updated)

	_, err = svc.GetModule(context.Background(), a)
	assert.ErrorIs(t, err, storage.ErrNotFound, "removal before the cancel is kept")
	rec, err := svc.GetModule(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Title, "paths after the cancel are left alone")
}

func TestSearchByFingerprint(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	a := writeModule(t, dir, "a.mod", decodertest.MOD(decodertest.Simple("alpha", 61, 65, 68)))
	writeModule(t, dir, "b.mod", decodertest.MOD(decodertest.Simple("beta", 49, 49, 49, 49, 49)))
	_, err := svc.ScanFolder(ctx, dir, nil)
	require.NoError(t, err)

	printable, err := svc.GetFingerprint(ctx, a)
	require.NoError(t, err)
	require.NotEmpty(t, printable)

	blob, err := fingerprint.ParsePrintable(printable)
	require.NoError(t, err)
	raw, err := fingerprint.Decode(blob)
	require.NoError(t, err)

	rs, err := svc.Search(ctx, query.Criteria{ShowAll: true, Fingerprint: raw})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.True(t, rs.Scored)

	byTitle := map[string]query.Result{}
	for _, r := range rs.Results {
		assert.True(t, r.Scored)
		byTitle[r.Title] = r
	}
	assert.Equal(t, 100, byTitle["alpha"].Match)
	assert.Less(t, byTitle["beta"].Match, 100)

	sorted := query.Sorted(rs.Results, query.SortMatch, true)
	assert.Equal(t, "alpha", sorted[0].Title)
}

func TestSearchWithoutFingerprintIsUnscored(t *testing.T) {
	ctx := context.Background()
	svc, dir := setupService(t)
	writeModule(t, dir, "a.mod", decodertest.MOD(decodertest.Simple("alpha", 61, 62, 61)))
	writeModule(t, dir, "b.mod", decodertest.MOD(decodertest.Simple("beta", 61, 60)))
	_, err := svc.ScanFolder(ctx, dir, nil)
	require.NoError(t, err)

	rs, err := svc.Search(ctx, query.Criteria{Melodies: [][]byte{{1, 0xFF}}})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.False(t, rs.Scored)
	assert.Equal(t, "alpha", rs.Results[0].Title)
	assert.Nil(t, rs.Results[0].Fingerprint)

	single, ok := rs.Single(query.Criteria{})
	assert.True(t, ok)
	assert.Equal(t, "alpha", single.Title)
}

func TestExportPlaylist(t *testing.T) {
	svc, _ := setupService(t)
	var buf bytes.Buffer
	err := svc.ExportPlaylist(&buf, []query.Result{
		{Entry: query.Entry{Path: "/m/a.mod", Title: "Alpha"}},
		{Entry: query.Entry{Path: "/m/b.mod"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "[playlist]", lines[0])
	assert.Equal(t, "numberofentries=2", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "file1="))
	assert.Equal(t, "title1=Alpha", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "file2="))
	assert.Equal(t, "title2=b", lines[5])
}

type failingStorage struct {
	Storage
}

func (failingStorage) Lookup(context.Context, string) (string, string, bool, error) {
	return "", "", false, errors.New("store offline")
}

func (failingStorage) Close() error { return nil }

func TestStorageFailureIsNotAdded(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithStorage(failingStorage{}), WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer svc.Close()

	path := writeModule(t, dir, "a.mod", decodertest.MOD(decodertest.Simple("a", 61)))
	res, err := svc.AddModule(context.Background(), path)
	assert.Equal(t, NotAdded, res)
	assert.Error(t, err)
}

// staleLookupStorage hides existing rows from Lookup, as when another writer
// inserts the path between the lookup and the insert.
type staleLookupStorage struct {
	Storage
	inserts int
}

func (s *staleLookupStorage) Lookup(context.Context, string) (string, string, bool, error) {
	return "", "", false, nil
}

func (s *staleLookupStorage) Insert(ctx context.Context, rec *Record) error {
	s.inserts++
	return s.Storage.Insert(ctx, rec)
}

func TestAddModuleConstraintFallsBackToUpdate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewSQLiteStorage(filepath.Join(dir, "lib.sqlite"))
	require.NoError(t, err)

	path := writeModule(t, dir, "race.mod", decodertest.MOD(decodertest.Simple("first", 61)))
	direct, err := NewService(WithStorage(store), WithLogger(logger.Discard()))
	require.NoError(t, err)
	res, err := direct.AddModule(ctx, path)
	require.NoError(t, err)
	require.Equal(t, Added, res)

	stale := &staleLookupStorage{Storage: store}
	svc, err := NewService(WithStorage(stale), WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer svc.Close()

	writeModule(t, dir, "race.mod", decodertest.MOD(decodertest.Simple("second", 61, 63)))
	res, err = svc.AddModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	assert.Equal(t, 1, stale.inserts)

	rec, err := svc.GetModule(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Title)

	paths, err := store.Paths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}
