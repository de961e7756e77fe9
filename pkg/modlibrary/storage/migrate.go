package storage

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersion is the newest schema this build knows how to write.
const SchemaVersion = 1

const schemaVersionKey = "schema_version"

// SchemaEntry is a key/value row of the schema metadata table.
type SchemaEntry struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value string `gorm:"column:value"`
}

func (SchemaEntry) TableName() string { return "modlib_schema" }

type migration struct {
	version int
	apply   func(tx *gorm.DB) error
}

// migrations run in order; each one runs at most once per database.
var migrations = []migration{
	{1, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&Module{}); err != nil {
			return err
		}
		// The primary key already covers filename lookups on most engines,
		// but sorting by path uses this index as well.
		if !tx.Migrator().HasIndex(&Module{}, "idx_modlib_filename") {
			return tx.Exec("CREATE INDEX idx_modlib_filename ON modlib_modules (filename)").Error
		}
		return nil
	}},
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaEntry{}); err != nil {
		return fmt.Errorf("creating schema table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, m.version)
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func schemaVersion(db *gorm.DB) (int, error) {
	var entry SchemaEntry
	err := db.Where("name = ?", schemaVersionKey).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("schema version %q: %w", entry.Value, err)
	}
	return v, nil
}

func setSchemaVersion(tx *gorm.DB, v int) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&SchemaEntry{Name: schemaVersionKey, Value: strconv.Itoa(v)}).Error
}
