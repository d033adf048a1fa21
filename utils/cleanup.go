package utils

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/qrdrop/models"
)

// OrphanAge is how old a leftover conversion input must be before the sweeper removes it.
const OrphanAge = 10 * time.Minute

const sweepBatch = 100

// StartUploadCleaner launches a background goroutine that periodically deletes
// expired uploads recorded in the ledger and conversion leftovers in qrDir.
// It stops when ctx is done. Failures are logged and retried on the next tick.
func StartUploadCleaner(ctx context.Context, db *gorm.DB, qrDir string, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n, err := SweepExpiredUploads(db, now); err != nil {
					Sugar.Warnf("upload cleaner query failed: %v", err)
				} else if n > 0 {
					Sugar.Infof("upload cleaner removed %d expired uploads", n)
				}
				if n, err := SweepOrphans(qrDir, OrphanAge, now); err != nil {
					Sugar.Warnf("upload cleaner orphan sweep failed: %v", err)
				} else if n > 0 {
					Sugar.Infof("upload cleaner removed %d orphaned files", n)
				}
			}
		}
	}()
}

// SweepExpiredUploads deletes files and ledger rows whose ExpireAt has passed,
// at most one batch per call. Rows are removed regardless of file deletion outcome.
func SweepExpiredUploads(db *gorm.DB, now time.Time) (int, error) {
	if db == nil {
		return 0, nil
	}
	var items []models.UploadedFile
	if err := db.Where("expire_at IS NOT NULL AND expire_at <= ?", now).Limit(sweepBatch).Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if err := os.Remove(it.DiskPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			Sugar.Warnf("upload cleaner remove %s failed: %v", it.DiskPath(), err)
		}
		if err := db.Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			Sugar.Warnf("upload cleaner delete row %d failed: %v", it.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// SweepOrphans removes files in dir that are not finished PNGs and are older
// than maxAge: inputs and pending renders left by an interrupted conversion.
func SweepOrphans(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
