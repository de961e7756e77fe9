package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mdobak/go-xerrors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	customlogger "github.com/himanishpuri/ModLibrary/pkg/logger"
	"github.com/himanishpuri/ModLibrary/pkg/utils"
)

const DefaultDBFile = "Mod Library.sqlite"
const errDBClientNil = "db client is nil"

var (
	ErrNotFound   = errors.New("module not found")
	ErrConstraint = errors.New("constraint violation")
)

type DBClient struct {
	DB       *gorm.DB
	db       *sql.DB
	postgres bool
}

// Module is one row of the library, keyed by normalized file path.
type Module struct {
	Hash             string    `gorm:"column:hash;not null;default:''"`
	Filename         string    `gorm:"column:filename;primaryKey"`
	FileSize         int64     `gorm:"column:filesize"`
	FileDate         time.Time `gorm:"column:filedate"`
	EditDate         time.Time `gorm:"column:editdate"`
	Format           string    `gorm:"column:format"`
	Title            string    `gorm:"column:title;index:idx_modlib_title"`
	Length           int64     `gorm:"column:length"` // milliseconds
	NumChannels      int       `gorm:"column:num_channels"`
	NumPatterns      int       `gorm:"column:num_patterns"`
	NumOrders        int       `gorm:"column:num_orders"`
	NumSubSongs      int       `gorm:"column:num_subsongs"`
	NumSamples       int       `gorm:"column:num_samples"`
	NumInstruments   int       `gorm:"column:num_instruments"`
	SampleText       string    `gorm:"column:sample_text"`
	InstrumentText   string    `gorm:"column:instrument_text"`
	Comments         string    `gorm:"column:comments"`
	Artist           string    `gorm:"column:artist"`
	PersonalComments string    `gorm:"column:personal_comments"`
	Fingerprint      []byte    `gorm:"column:fingerprint"`
	NoteData         []byte    `gorm:"column:note_data"`
}

func (Module) TableName() string { return "modlib_modules" }

// extractedColumns lists everything a rescan may overwrite. The personal
// comment is owned by the user and never appears here.
func (m *Module) extractedColumns() map[string]any {
	return map[string]any{
		"hash":            m.Hash,
		"filename":        m.Filename,
		"filesize":        m.FileSize,
		"filedate":        m.FileDate,
		"editdate":        m.EditDate,
		"format":          m.Format,
		"title":           m.Title,
		"length":          m.Length,
		"num_channels":    m.NumChannels,
		"num_patterns":    m.NumPatterns,
		"num_orders":      m.NumOrders,
		"num_subsongs":    m.NumSubSongs,
		"num_samples":     m.NumSamples,
		"num_instruments": m.NumInstruments,
		"sample_text":     m.SampleText,
		"instrument_text": m.InstrumentText,
		"comments":        m.Comments,
		"artist":          m.Artist,
		"fingerprint":     m.Fingerprint,
		"note_data":       m.NoteData,
	}
}

// IsPostgresDSN reports whether path names a PostgreSQL database rather
// than an SQLite file.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("MODLIB_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens the store and migrates its schema. An existing
// SQLite file is first copied to "<path>~"; failure to do so is only logged.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
		pg  = IsPostgresDSN(dbPath)
	)
	if pg {
		db, err = gorm.Open(postgres.Open(dbPath), gormConfig)
	} else {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := utils.MakeDir(dir); err != nil {
				return nil, xerrors.New("creating db dir", err)
			}
		}
		if _, statErr := os.Stat(dbPath); statErr == nil {
			if err := utils.CopyFile(dbPath, dbPath+"~"); err != nil {
				customlogger.GetLogger().Warnf("could not back up %s: %v", dbPath, err)
			}
		}
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	}
	if err != nil {
		return nil, xerrors.New("opening database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerrors.New("getting sql.DB from gorm", err)
	}
	if pg {
		sqlDB.SetMaxOpenConns(5)
	} else {
		// one writer; SQLite serialises access anyway
		sqlDB.SetMaxOpenConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		sqlDB.Close()
		return nil, xerrors.New("migrating schema", err)
	}

	return &DBClient{DB: db, db: sqlDB, postgres: pg}, nil
}

// Close compacts an SQLite store and closes the connection.
func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if !c.postgres {
		if err := c.DB.Exec("VACUUM").Error; err != nil {
			customlogger.GetLogger().Warnf("vacuum failed: %v", err)
		}
	}
	return c.db.Close()
}

func isConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// Insert adds a new row. A row that already exists for the path yields
// ErrConstraint.
func (c *DBClient) Insert(ctx context.Context, m *Module) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.WithContext(ctx).Create(m).Error; err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s: %v", ErrConstraint, m.Filename, err)
		}
		return fmt.Errorf("inserting module: %w", err)
	}
	return nil
}

// Update overwrites the extracted columns of the row stored under oldPath.
// It returns ErrNotFound when no such row exists.
func (c *DBClient) Update(ctx context.Context, oldPath string, m *Module) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.WithContext(ctx).Model(&Module{}).
		Where("filename = ?", oldPath).
		Updates(m.extractedColumns())
	if res.Error != nil {
		if isConstraintError(res.Error) {
			return fmt.Errorf("%w: %s: %v", ErrConstraint, m.Filename, res.Error)
		}
		return fmt.Errorf("updating module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, oldPath)
	}
	return nil
}

// UpdateCustom writes only the user-editable columns.
func (c *DBClient) UpdateCustom(ctx context.Context, path, artist, personalComments string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.WithContext(ctx).Model(&Module{}).
		Where("filename = ?", path).
		Updates(map[string]any{"artist": artist, "personal_comments": personalComments})
	if res.Error != nil {
		return fmt.Errorf("updating custom fields: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

func (c *DBClient) Get(ctx context.Context, path string) (*Module, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var m Module
	err := c.DB.WithContext(ctx).Where("filename = ?", path).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("querying module: %w", err)
	}
	return &m, nil
}

// Lookup returns the content hash and artist of a stored path without
// loading the blobs. ok is false when the path is not stored.
func (c *DBClient) Lookup(ctx context.Context, path string) (hash, artist string, ok bool, err error) {
	if c == nil || c.DB == nil {
		return "", "", false, errors.New(errDBClientNil)
	}
	var rows []Module
	err = c.DB.WithContext(ctx).Model(&Module{}).
		Select("hash", "artist").
		Where("filename = ?", path).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", "", false, fmt.Errorf("looking up module: %w", err)
	}
	if len(rows) == 0 {
		return "", "", false, nil
	}
	return rows[0].Hash, rows[0].Artist, true, nil
}

func (c *DBClient) Fingerprint(ctx context.Context, path string) ([]byte, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Module
	err := c.DB.WithContext(ctx).Model(&Module{}).
		Select("fingerprint").
		Where("filename = ?", path).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying fingerprint: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return rows[0].Fingerprint, nil
}

// Remove deletes the row and reports whether one existed.
func (c *DBClient) Remove(ctx context.Context, path string) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errors.New(errDBClientNil)
	}
	res := c.DB.WithContext(ctx).Where("filename = ?", path).Delete(&Module{})
	if res.Error != nil {
		return false, fmt.Errorf("removing module: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (c *DBClient) Paths(ctx context.Context) ([]string, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var paths []string
	if err := c.DB.WithContext(ctx).Model(&Module{}).Order("filename").Pluck("filename", &paths).Error; err != nil {
		return nil, fmt.Errorf("listing paths: %w", err)
	}
	return paths, nil
}

func (c *DBClient) Count(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.WithContext(ctx).Model(&Module{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting modules: %w", err)
	}
	return n, nil
}
