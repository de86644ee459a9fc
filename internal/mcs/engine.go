package mcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers  = 4
	defaultPageSize = 200
)

// EngineOptions tune a migration run.
type EngineOptions struct {
	Workers           int    // parallel records; defaults to 4
	PageSize          int    // records fetched per page; defaults to 200
	PrivateURLPath    string // proxy path written to private records
	AttachmentsFolder string // folder assigned to migrated records
	RemoveLocal       bool   // delete the local copy after the record is updated
	Retry             RetryPolicy
}

// Engine migrates local files to a storage backend and rewrites their records.
type Engine struct {
	source     RecordSource
	backend    StorageBackend
	classifier *Classifier
	keys       *KeyGenerator
	fsmgr      FilesystemManager
	logger     Logger
	opts       EngineOptions
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(source RecordSource, backend StorageBackend, classifier *Classifier, keys *KeyGenerator, fsmgr FilesystemManager, logger Logger, opts EngineOptions) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Engine{
		source:     source,
		backend:    backend,
		classifier: classifier,
		keys:       keys,
		fsmgr:      fsmgr,
		logger:     logger,
		opts:       opts,
	}
}

// Run walks every file record once and returns the completed report.
// Per-record failures are reported in Report.Errors. An error is returned only
// when records cannot be listed or ctx is cancelled; no report is returned then.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	col := newCollector()

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	runErr := e.dispatch(ctx, &g, col)
	// Records already started always finish, so their updates are never torn.
	_ = g.Wait()

	if runErr != nil {
		return nil, runErr
	}

	report := col.finish()
	e.logger.Info("migration finished",
		"total", report.Total,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

// dispatch pages through the record source and hands each record to the pool.
func (e *Engine) dispatch(ctx context.Context, g *errgroup.Group, col *collector) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("migration cancelled: %w", err)
		}

		var page []*FileRecord
		err := e.opts.Retry.Do(ctx, e.logger, "list records", func(ctx context.Context) error {
			var err error
			page, err = e.source.ListRecords(ctx, afterID, e.opts.PageSize)
			return err
		})
		if err != nil {
			return fmt.Errorf("listing file records: %w", err)
		}

		for _, rec := range page {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("migration cancelled: %w", err)
			}
			g.Go(func() error {
				e.process(ctx, rec, col)
				return nil
			})
		}

		if len(page) < e.opts.PageSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}

// process migrates a single record and reports its outcome to col.
func (e *Engine) process(ctx context.Context, rec *FileRecord, col *collector) {
	outcome, err := e.MigrateRecord(ctx, rec)
	if err != nil {
		e.logger.Warn("record failed", "file", recordID(rec), "error", err)
		col.fail(recordID(rec), err)
		return
	}
	col.add(outcome)
}

// MigrateRecord classifies rec and, when it points at a local file, uploads
// the file and rewrites the record. A skip is reported through the outcome;
// err is set only when an upload or record update failed, or a dependency
// panicked while handling rec.
func (e *Engine) MigrateRecord(ctx context.Context, rec *FileRecord) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeMigrate, fmt.Errorf("panic: %v", r)
		}
	}()

	outcome, local, cerr := e.classify(rec)
	if cerr != nil {
		e.logger.Warn("record not classifiable", "file", recordID(rec), "error", cerr)
		return OutcomeSkipOther, nil
	}
	if outcome != OutcomeMigrate {
		e.logger.Debug("record skipped", "file", rec.ID, "reason", outcome.String())
		return outcome, nil
	}
	return OutcomeMigrate, e.migrate(ctx, rec, local)
}

// classify shields the run from a panicking classifier.
func (e *Engine) classify(rec *FileRecord) (outcome Outcome, local *LocalFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, local, err = OutcomeSkipOther, nil, fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return e.classifier.Classify(rec)
}

// migrate uploads one file and points its record at the new location.
func (e *Engine) migrate(ctx context.Context, rec *FileRecord, local *LocalFile) error {
	fileName := rec.FileName
	if fileName == "" {
		fileName = filepath.Base(local.Path)
	}

	vis := VisibilityOf(rec.IsPrivate)
	obj := &Object{
		Key:        e.keys.Generate(fileName, rec.AttachedToType),
		FileName:   fileName,
		Size:       local.Size,
		Visibility: vis,
	}

	var objectURL string
	err := e.opts.Retry.Do(ctx, e.logger, "put", func(ctx context.Context) error {
		f, err := e.fsmgr.Open(local.Path)
		if err != nil {
			return fmt.Errorf("reading local file: %w", err)
		}
		defer f.Close()

		contentType, r, err := DetectContentType(f)
		if err != nil {
			return err
		}
		obj.ContentType = contentType

		u, err := e.backend.Put(ctx, obj, r)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", obj.Key, err)
		}
		objectURL = u
		return nil
	})
	if err != nil {
		return err
	}

	hash := ContentHash(obj.Key, vis)
	update := RecordUpdate{
		URL:         objectURL,
		ContentHash: hash,
		Folder:      e.opts.AttachmentsFolder,
	}
	if vis == Private {
		update.URL = PrivateURL(e.opts.PrivateURLPath, hash, fileName)
	}

	err = e.opts.Retry.Do(ctx, e.logger, "update record", func(ctx context.Context) error {
		return e.source.UpdateRecord(ctx, rec.ID, update)
	})
	if err != nil {
		// A timed out or interrupted update may still have committed, and the
		// record would then point at the object.
		if updateMayHaveApplied(err) {
			e.logger.Warn("uploaded object kept after ambiguous update failure", "file", rec.ID, "key", obj.Key, "error", err)
		} else {
			e.discard(ctx, obj)
		}
		return fmt.Errorf("updating record: %w", err)
	}

	if e.opts.RemoveLocal {
		if err := e.fsmgr.Remove(local.Path); err != nil {
			e.logger.Warn("local file not removed", "file", rec.ID, "path", local.Path, "error", err)
		}
	}

	e.logger.Info("record migrated", "file", rec.ID, "key", obj.Key, "visibility", vis.String(), "size", obj.Size)
	return nil
}

// discard removes an uploaded object whose record could not be updated, so
// the next run starts clean. Only backends that can delete are cleaned up.
func (e *Engine) discard(ctx context.Context, obj *Object) {
	store, ok := e.backend.(ObjectStore)
	if !ok {
		return
	}
	if err := store.Delete(context.WithoutCancel(ctx), obj.Key, obj.Visibility); err != nil {
		e.logger.Warn("orphaned object not removed", "key", obj.Key, "error", err)
	}
}

func updateMayHaveApplied(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	return IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func recordID(rec *FileRecord) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}
