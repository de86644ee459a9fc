package mcs

import (
	"context"
	"io"
	"io/fs"
)

// FileRecord is one file known to the host application.
type FileRecord struct {
	ID             string
	FileName       string
	URL            string // local URL (e.g. /files/a.png) or cloud URL
	IsPrivate      bool
	AttachedToType string
	AttachedToName string
	ContentHash    string
	Folder         string
}

// RecordUpdate is the set of fields rewritten when a file moves to the cloud.
type RecordUpdate struct {
	URL         string
	ContentHash string
	Folder      string
}

// RecordSource gives the engine paged access to file records.
// Folder records are never returned.
type RecordSource interface {
	// ListRecords returns up to limit records ordered by ID, starting after
	// afterID ("" starts from the beginning). A short page means the end.
	ListRecords(ctx context.Context, afterID string, limit int) ([]*FileRecord, error)

	// GetRecord returns the record with id. Returns ErrNotFound if id is
	// unknown or names a folder.
	GetRecord(ctx context.Context, id string) (*FileRecord, error)

	// UpdateRecord rewrites a single record. Returns ErrNotFound if id is unknown.
	UpdateRecord(ctx context.Context, id string, u RecordUpdate) error
}

// RecordStore is a RecordSource this tool owns and can add records to.
type RecordStore interface {
	RecordSource

	// InsertRecord registers a new record.
	InsertRecord(ctx context.Context, rec *FileRecord) error

	// FindRecordByURL returns the record with the given URL, or nil if none exists.
	FindRecordByURL(ctx context.Context, url string) (*FileRecord, error)
}

// FilesystemManager abstracts the local disk the host stores files on.
type FilesystemManager interface {
	// Stat returns file info without following symlinks.
	Stat(path string) (fs.FileInfo, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a file.
	Remove(path string) error
}
