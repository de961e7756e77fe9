package modlibrary

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/himanishpuri/ModLibrary/pkg/logger"
)

// runLogger tags log lines of one batch run when the configured logger
// supports prefixes.
func (s *modService) runLogger(runID string) Logger {
	if l, ok := s.log.(*logger.Logger); ok {
		return l.WithPrefix(runID[:8])
	}
	return s.log
}

// ScanFolder adds every regular file below dir. Cancelling ctx stops the
// scan before the next file; records written so far are kept.
func (s *modService) ScanFolder(ctx context.Context, dir string, progress ProgressFunc) (ScanReport, error) {
	report := ScanReport{RunID: uuid.NewString()}
	log := s.runLogger(report.RunID)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", dir, err)
	}
	log.Infof("Scanning %d files in %s", len(files), dir)

	for i, path := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		res, err := s.AddModule(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				break
			}
			log.Debugf("%s: %v", path, err)
		}
		report.Scanned++
		switch res {
		case Added:
			report.Added++
		case Updated:
			report.Updated++
		case NoChange:
			report.Unchanged++
		default:
			report.Failed++
		}
		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(files), Path: path, Result: res})
		}
	}

	log.Infof("Scan finished: %d added, %d updated, %d unchanged, %d failed",
		report.Added, report.Updated, report.Unchanged, report.Failed)
	return report, nil
}

// Maintain rescans every stored path. Records whose file can no longer be
// read or decoded are removed.
func (s *modService) Maintain(ctx context.Context, progress ProgressFunc) (MaintainReport, error) {
	report := MaintainReport{RunID: uuid.NewString()}
	log := s.runLogger(report.RunID)

	total, err := s.storage.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("counting modules: %w", err)
	}
	paths, err := s.storage.Paths(ctx)
	if err != nil {
		return report, fmt.Errorf("listing modules: %w", err)
	}
	report.Total = int(total)
	log.Infof("Maintaining %d modules", report.Total)

	for i, path := range paths {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		res, err := s.UpdateModule(ctx, path)
		if err != nil && ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Scanned++
		switch res {
		case Added, Updated:
			report.Updated++
		case IOError, NotAdded:
			if _, rmErr := s.storage.Remove(ctx, path); rmErr != nil {
				log.Errorf("Failed to remove %s: %v", path, rmErr)
			} else {
				log.Infof("Removed %s: %v", path, err)
				report.Removed++
			}
		}
		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(paths), Path: path, Result: res})
		}
	}

	log.Infof("Maintenance finished: %d updated, %d removed", report.Updated, report.Removed)
	return report, nil
}
