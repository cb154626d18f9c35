package filehost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Kept       int
	Pruned     int
	Discovered int
}

// Reconciler brings the metadata store in line with the files on disk.
// The filesystem is ground truth: records for missing files are removed and
// files without records are indexed.
type Reconciler struct {
	store  MetadataStore
	fsmgr  FilesystemManager
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewReconciler creates a Reconciler with the provided dependencies.
func NewReconciler(store MetadataStore, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *Reconciler {
	return &Reconciler{
		store:  store,
		fsmgr:  fsmgr,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Reconcile runs one pass. It must complete before requests are served.
// Every correction is written to the store before Reconcile returns.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	records, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	// 1. Keep only records whose file still exists.
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		info, err := r.fsmgr.Stat(rec.RelativePath)
		if err == nil && info.Mode().IsRegular() {
			known[rec.RelativePath] = true
			report.Kept++
			continue
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checking %s: %w", rec.RelativePath, err)
		}

		if err := r.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("pruning record %s: %w", rec.ID, err)
		}
		report.Pruned++
		r.logger.Debug("stale record pruned", "id", rec.ID, "path", rec.RelativePath)
	}

	// 2-3. Index files found on disk that have no record.
	err = r.fsmgr.Walk(func(relativePath string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if known[relativePath] {
			return nil
		}

		name := path.Base(relativePath)
		rec := &FileRecord{
			ID:           r.idgen.New(),
			StoredName:   name,
			Directory:    ParentDirectory(relativePath),
			RelativePath: relativePath,
			OriginalName: name,
			Size:         info.Size(),
			UploadedAt:   info.ModTime(),
			Extension:    Extension(name),
		}
		if rec.UploadedAt.IsZero() {
			rec.UploadedAt = r.clock.Now()
		}
		if err := r.store.Insert(ctx, rec); err != nil {
			return fmt.Errorf("indexing %s: %w", relativePath, err)
		}
		known[relativePath] = true
		report.Discovered++
		r.logger.Debug("file discovered", "id", rec.ID, "path", relativePath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking upload root: %w", err)
	}

	r.logger.Info("reconciliation complete",
		"kept", report.Kept,
		"pruned", report.Pruned,
		"discovered", report.Discovered,
	)
	return report, nil
}
