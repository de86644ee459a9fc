package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"mcs-go/internal/config"
	"mcs-go/internal/credentials"
	"mcs-go/internal/fs"
	"mcs-go/internal/mcs"
	"mcs-go/internal/records"
	"mcs-go/internal/storage"
)

var (
	// ErrMigrationRunning is returned when a migration is requested while
	// another one is still in progress on the same App.
	ErrMigrationRunning = errors.New("a migration is already running")

	// ErrDeleteDisabled is returned by DeleteObject unless delete_from_cloud is set.
	ErrDeleteDisabled = errors.New("deleting from cloud storage is disabled")

	// ErrNoRunHistory is returned when the record store does not keep run history.
	ErrNoRunHistory = errors.New("record store does not keep migration history")
)

// runRecorder is implemented by record stores that persist migration runs.
type runRecorder interface {
	StartRun(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, report *mcs.Report, runErr error) error
	ListRuns(ctx context.Context, limit int) ([]*records.Run, error)
}

// Options adjust how NewApp wires the application. The zero value is
// suitable for the CLI.
type Options struct {
	Passphrase credentials.PassphraseFunc // unlocks age-sealed secrets
	Verbose    bool                       // debug logs on stderr
	Stderr     io.Writer                  // defaults to os.Stderr
	Clock      mcs.Clock
	IDs        mcs.IDGenerator
	KeySuffix  func() string
}

// App is the application layer between the CLI or RPC server and the
// migration engine. It constructs all dependencies from config, opens the
// storage backend and record store on first use, and releases them on Close.
// Safe for concurrent use.
type App struct {
	cfg     *config.Config
	opts    Options
	op      *Operation
	fsmgr   *fs.OSFilesystemManager
	logger  mcs.Logger
	logFile *os.File

	mu      sync.Mutex
	backend storage.Backend
	source  records.Source

	migrating atomic.Bool
}

// NewApp creates an App from the given config.
// operation identifies the command being run (e.g. "Migrate", "Serve").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string, opts Options) (*App, error) {
	if opts.Clock == nil {
		opts.Clock = mcs.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = mcs.UUIDGenerator{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	op := NewOperation(operation, opts.IDs)
	logger, logFile, err := newLogger(cfg.LogDir, op.ShortID(), opts.Verbose, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{
		cfg:     cfg,
		opts:    opts,
		op:      op,
		fsmgr:   fs.NewOSFilesystemManager(),
		logger:  &slogAdapter{l: logger},
		logFile: logFile,
	}
	a.logger.Debug("operation started", "operation", operation, "provider", cfg.Storage.Provider)
	return a, nil
}

// Operation returns the operation this App was created for.
func (a *App) Operation() *Operation {
	return a.op
}

// Logger returns the operation logger.
func (a *App) Logger() mcs.Logger {
	return a.logger
}

// storageBackend validates the storage section and creates the backend once.
// Every error it returns wraps mcs.ErrNotEnabled or mcs.ErrInvalidConfig.
func (a *App) storageBackend(ctx context.Context) (storage.Backend, error) {
	if !a.cfg.Storage.Enabled {
		return nil, mcs.ErrNotEnabled
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		return a.backend, nil
	}

	if err := a.cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}

	var secret string
	if storage.NeedsSecret(a.cfg.Storage) {
		src, err := credentials.NewSourceFromConfig(a.cfg.Credentials, a.opts.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
		}
		if secret, err = src.SecretKey(); err != nil {
			return nil, fmt.Errorf("%w: secret key: %w", mcs.ErrInvalidConfig, err)
		}
	}

	b, err := storage.NewBackendFromConfig(ctx, a.cfg.Storage, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}
	a.backend = b
	return b, nil
}

// recordSource opens the configured record store once.
func (a *App) recordSource(ctx context.Context) (records.Source, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return a.source, nil
	}

	src, err := records.NewSourceFromConfig(ctx, a.cfg.Records)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	a.source = src
	return src, nil
}

func (a *App) retryPolicy(timeout config.Duration, def time.Duration) mcs.RetryPolicy {
	m := a.cfg.Migration
	return mcs.RetryPolicy{
		MaxRetries: m.MaxRetries,
		BaseDelay:  m.RetryBaseDelay.Or(config.DefaultRetryBaseDelay),
		Timeout:    timeout.Or(def),
	}
}

// localRoots returns the configured roots, or the defaults under base_dir/site.
func (a *App) localRoots() []mcs.LocalRoot {
	if len(a.cfg.LocalRoots) == 0 {
		return mcs.DefaultLocalRoots(filepath.Join(a.cfg.BaseDir, "site"))
	}
	roots := make([]mcs.LocalRoot, 0, len(a.cfg.LocalRoots))
	for _, r := range a.cfg.LocalRoots {
		roots = append(roots, mcs.LocalRoot{URLPrefix: r.URLPrefix, Dir: r.Dir, Private: r.Private})
	}
	return roots
}

func (a *App) privateURLPath() string {
	if p := a.cfg.Migration.PrivateURLPath; p != "" {
		return p
	}
	return config.DefaultPrivateURLPath
}

// classifier builds the classifier for backend. Records already pointing at
// the backend, the private proxy or a configured pattern count as cloud URLs.
func (a *App) classifier(backend storage.Backend) (*mcs.Classifier, error) {
	patterns := a.cfg.Storage.CloudURLPatterns
	if len(patterns) == 0 {
		patterns = mcs.DefaultCloudURLPatterns
	}
	prefixes := append([]string{a.privateURLPath(), a.cfg.Storage.PublicBaseURL}, backend.BaseURLs()...)

	matcher, err := mcs.NewCloudURLMatcher(patterns, prefixes...)
	if err != nil {
		return nil, err
	}
	return mcs.NewClassifier(a.localRoots(), matcher, a.fsmgr), nil
}

// TestConnection checks that the configured backend is reachable.
// It never fails; every problem is reported in the result.
func (a *App) TestConnection(ctx context.Context) mcs.ConnectionResult {
	backend, err := a.storageBackend(ctx)
	if err != nil {
		a.logger.Warn("connection test not run", "error", err)
		return mcs.FailedConnection(err.Error())
	}

	retry := a.retryPolicy(a.cfg.Migration.HealthTimeout, config.DefaultHealthTimeout)
	return mcs.NewConnectionTester(backend, retry, a.logger).Check(ctx)
}

// MigrateExistingFiles uploads every local file referenced by a record and
// rewrites the record. Configuration problems are reported as errors wrapping
// mcs.ErrNotEnabled or mcs.ErrInvalidConfig before any record is read.
// Per-record failures are collected in the report.
func (a *App) MigrateExistingFiles(ctx context.Context) (*mcs.Report, error) {
	if !a.cfg.Storage.Enabled {
		return nil, mcs.ErrNotEnabled
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}
	backend, err := a.storageBackend(ctx)
	if err != nil {
		return nil, err
	}
	classifier, err := a.classifier(backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}

	if !a.migrating.CompareAndSwap(false, true) {
		return nil, ErrMigrationRunning
	}
	defer a.migrating.Store(false)

	// The operation status reports the outcome of this run.
	a.op.Succeed()

	health := a.retryPolicy(a.cfg.Migration.HealthTimeout, config.DefaultHealthTimeout)
	if err := health.Do(ctx, a.logger, "health check", backend.HealthCheck); err != nil {
		a.op.Fail()
		return nil, fmt.Errorf("storage backend unreachable: %w", err)
	}

	src, err := a.recordSource(ctx)
	if err != nil {
		a.op.Fail()
		return nil, err
	}

	engine := a.newEngine(src, backend, classifier)

	runID := a.opts.IDs.New()
	recorder, _ := src.(runRecorder)
	if recorder != nil {
		if err := recorder.StartRun(ctx, runID); err != nil {
			a.logger.Warn("migration run not recorded", "run", runID, "error", err)
			recorder = nil
		}
	}

	a.logger.Info("migration started", "run", runID, "provider", a.cfg.Storage.Provider)
	report, runErr := engine.Run(ctx)

	if recorder != nil {
		if err := recorder.FinishRun(context.WithoutCancel(ctx), runID, report, runErr); err != nil {
			a.logger.Warn("migration run not finalized", "run", runID, "error", err)
		}
	}
	if runErr != nil {
		a.op.Fail()
		a.logger.Error("migration failed", "run", runID, "error", runErr)
		return nil, runErr
	}
	if len(report.Errors) > 0 {
		a.op.Fail()
	}
	return report, nil
}

func (a *App) newEngine(src mcs.RecordSource, backend storage.Backend, classifier *mcs.Classifier) *mcs.Engine {
	m := a.cfg.Migration
	folder := m.AttachmentsFolder
	if folder == "" {
		folder = config.DefaultAttachmentsFolder
	}
	return mcs.NewEngine(src, backend, classifier,
		mcs.NewKeyGenerator(a.cfg.Storage.Folder, a.opts.Clock, a.opts.KeySuffix),
		a.fsmgr, a.logger, mcs.EngineOptions{
			Workers:           m.Workers,
			PageSize:          m.PageSize,
			PrivateURLPath:    a.privateURLPath(),
			AttachmentsFolder: folder,
			RemoveLocal:       m.RemoveLocalAfterUpload,
			Retry:             a.retryPolicy(m.PutTimeout, config.DefaultPutTimeout),
		})
}

// UploadResult describes what UploadRecord did with one record.
type UploadResult struct {
	ID       string `json:"id"`
	Uploaded bool   `json:"uploaded"`
	Reason   string `json:"reason,omitempty"` // why the record was left alone
	URL      string `json:"file_url"`
}

// ReasonIgnoredDoctype is reported for records attached to an ignored type.
const ReasonIgnoredDoctype = "ignored_doctype"

// UploadRecord moves the local file of a single, usually just created,
// record to cloud storage and rewrites the record. Records attached to an
// ignored type, and records that are not local files, are left alone and
// reported with a reason. An unknown id wraps mcs.ErrNotFound.
func (a *App) UploadRecord(ctx context.Context, id string) (*UploadResult, error) {
	if !a.cfg.Storage.Enabled {
		return nil, mcs.ErrNotEnabled
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}
	backend, err := a.storageBackend(ctx)
	if err != nil {
		return nil, err
	}
	classifier, err := a.classifier(backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}
	src, err := a.recordSource(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := src.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &UploadResult{ID: rec.ID, URL: rec.URL}
	if slices.Contains(a.cfg.Migration.IgnoredDoctypes(), rec.AttachedToType) {
		a.logger.Debug("record upload skipped", "file", rec.ID, "doctype", rec.AttachedToType)
		result.Reason = ReasonIgnoredDoctype
		return result, nil
	}

	outcome, err := a.newEngine(src, backend, classifier).MigrateRecord(ctx, rec)
	if err != nil {
		a.logger.Error("record upload failed", "file", rec.ID, "error", err)
		return nil, fmt.Errorf("uploading record %s: %w", rec.ID, err)
	}
	if outcome != mcs.OutcomeMigrate {
		result.Reason = outcome.String()
		return result, nil
	}

	updated, err := src.GetRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("reading uploaded record %s: %w", rec.ID, err)
	}
	result.Uploaded = true
	result.URL = updated.URL
	return result, nil
}

// GenerateFileURL returns a short-lived download URL for the object named by
// contentHash ("private:<key>" or "public:<key>").
func (a *App) GenerateFileURL(ctx context.Context, contentHash, fileName string) (string, error) {
	backend, err := a.storageBackend(ctx)
	if err != nil {
		return "", err
	}

	key, vis := mcs.ParseContentHash(contentHash)
	if key == "" {
		return "", fmt.Errorf("empty object key: %w", mcs.ErrNotFound)
	}
	ok, err := backend.Exists(ctx, key, vis)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("object %s: %w", key, mcs.ErrNotFound)
	}

	expiry := a.cfg.Storage.SignedURLExpiry.Or(config.DefaultSignedURLExpiry)
	return backend.SignedURL(ctx, key, fileName, vis, expiry)
}

// DeleteObject removes the object named by contentHash from cloud storage.
func (a *App) DeleteObject(ctx context.Context, contentHash string) error {
	if !a.cfg.Storage.DeleteFromCloud {
		return ErrDeleteDisabled
	}
	backend, err := a.storageBackend(ctx)
	if err != nil {
		return err
	}

	key, vis := mcs.ParseContentHash(contentHash)
	if key == "" {
		return fmt.Errorf("empty object key: %w", mcs.ErrNotFound)
	}
	if err := backend.Delete(ctx, key, vis); err != nil {
		return err
	}
	a.logger.Info("object deleted", "key", key, "visibility", vis.String())
	return nil
}

// ScanResult summarizes a ScanRecords call.
type ScanResult struct {
	Found int // files discovered under the local roots
	Added int // records created for files without one
}

// ScanRecords registers every file under the local roots that has no record
// yet, so a standalone record store has something to migrate.
func (a *App) ScanRecords(ctx context.Context) (*ScanResult, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, err)
	}
	src, err := a.recordSource(ctx)
	if err != nil {
		return nil, err
	}
	store, ok := src.(mcs.RecordStore)
	if !ok {
		return nil, fmt.Errorf("record store %q does not accept new records", a.cfg.Records.Type)
	}

	result := &ScanResult{}
	for _, root := range a.localRoots() {
		files, err := a.fsmgr.FindFiles(root.Dir, a.cfg.Filesystem.Ignore)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root.Dir, err)
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result.Found++

			url := root.URLFor(f.RelPath)
			existing, err := store.FindRecordByURL(ctx, url)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}

			rec := &mcs.FileRecord{
				ID:        a.opts.IDs.New(),
				FileName:  filepath.Base(f.Path),
				URL:       url,
				IsPrivate: root.Private,
				Folder:    "Home",
			}
			if err := store.InsertRecord(ctx, rec); err != nil {
				return nil, fmt.Errorf("registering %s: %w", url, err)
			}
			a.logger.Debug("record registered", "file", rec.ID, "url", url, "size", f.Size)
			result.Added++
		}
	}

	a.logger.Info("scan finished", "found", result.Found, "added", result.Added)
	return result, nil
}

// History returns the most recent migration runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*records.Run, error) {
	src, err := a.recordSource(ctx)
	if err != nil {
		return nil, err
	}
	recorder, ok := src.(runRecorder)
	if !ok {
		return nil, ErrNoRunHistory
	}
	return recorder.ListRuns(ctx, limit)
}

// Close releases the backend, the record store and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			firstErr = fmt.Errorf("closing record store: %w", err)
		}
		a.source = nil
	}
	if c, ok := a.backend.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing storage backend: %w", err)
		}
	}
	a.backend = nil

	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status())
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}
