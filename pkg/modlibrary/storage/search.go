package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
)

type entryRow struct {
	Filename    string    `gorm:"column:filename"`
	Title       string    `gorm:"column:title"`
	FileSize    int64     `gorm:"column:filesize"`
	FileDate    time.Time `gorm:"column:filedate"`
	Fingerprint []byte    `gorm:"column:fingerprint"`
}

// Search returns the light-weight entries matching c. The fingerprint
// column is loaded only when c carries a query fingerprint.
func (c *DBClient) Search(ctx context.Context, crit query.Criteria) ([]query.Entry, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	cols := []string{"filename", "title", "filesize", "filedate"}
	if len(crit.Fingerprint) > 0 {
		cols = append(cols, "fingerprint")
	}
	tx := c.DB.WithContext(ctx).Model(&Module{}).Select(cols)
	if !crit.ShowAll {
		tx = c.applyFilters(tx, crit)
	}
	if !c.postgres {
		tx = tx.Order("rowid")
	}

	var rows []entryRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("searching modules: %w", err)
	}

	entries := make([]query.Entry, len(rows))
	for i, r := range rows {
		entries[i] = query.Entry{
			Path:        r.Filename,
			Title:       r.Title,
			FileSize:    r.FileSize,
			FileDate:    r.FileDate,
			Fingerprint: r.Fingerprint,
		}
	}
	return entries, nil
}

func (c *DBClient) applyFilters(tx *gorm.DB, crit query.Criteria) *gorm.DB {
	if crit.HasTextFilter() {
		like := "LIKE"
		if c.postgres {
			like = "ILIKE"
		}
		pattern := query.LikePattern(crit.Text)
		cols := crit.Fields.Columns()
		conds := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			conds[i] = fmt.Sprintf(`%s %s ? ESCAPE '\'`, col, like)
			args[i] = pattern
		}
		tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	if crit.Size.Enabled {
		r := crit.Size.Normalize()
		tx = tx.Where("filesize BETWEEN ? AND ?", r.Min, r.Max)
	}
	if crit.Duration.Enabled {
		r := crit.Duration.Normalize()
		tx = tx.Where("length BETWEEN ? AND ?", r.Min.Milliseconds(), r.Max.Milliseconds())
	}
	if crit.FileDate.Enabled {
		r := crit.FileDate.Normalize()
		tx = tx.Where("filedate BETWEEN ? AND ?", StoredTime(r.From), StoredTime(r.To))
	}
	if crit.ReleaseDate.Enabled {
		r := crit.ReleaseDate.Normalize()
		tx = tx.Where("editdate BETWEEN ? AND ?", StoredTime(r.From), StoredTime(r.To))
	}

	contains := "INSTR(note_data, ?) > 0"
	if c.postgres {
		contains = "position(? in note_data) > 0"
	}
	for _, frag := range crit.Melodies {
		if len(frag) == 0 {
			continue
		}
		tx = tx.Where(contains, frag)
	}
	return tx
}

// StoredTime is the form timestamps are written in, so that range queries
// compare like with like.
func StoredTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Second)
}
