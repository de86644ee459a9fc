package mcs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Outcome is the classification of one file record.
type Outcome int

const (
	OutcomeMigrate Outcome = iota
	OutcomeSkipNotLocalURL
	OutcomeSkipNoURLOrCloud
	OutcomeSkipFileNotFound
	OutcomeSkipOther
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMigrate:
		return "migrate"
	case OutcomeSkipNotLocalURL:
		return "skip_not_local_url"
	case OutcomeSkipNoURLOrCloud:
		return "skip_no_url_or_cloud"
	case OutcomeSkipFileNotFound:
		return "skip_file_not_found"
	case OutcomeSkipOther:
		return "skip_other"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LocalFile is a migratable file resolved on disk.
type LocalFile struct {
	Path string
	Root LocalRoot
	Size int64
}

// Classifier decides what to do with a single file record.
type Classifier struct {
	roots []LocalRoot
	cloud *CloudURLMatcher
	fsmgr FilesystemManager
}

// NewClassifier creates a Classifier over the given local roots.
func NewClassifier(roots []LocalRoot, cloud *CloudURLMatcher, fsmgr FilesystemManager) *Classifier {
	return &Classifier{
		roots: roots,
		cloud: cloud,
		fsmgr: fsmgr,
	}
}

// Classify returns exactly one outcome for rec. The checks run in a fixed
// order and the first match wins:
//
//  1. no URL, or a cloud URL          -> OutcomeSkipNoURLOrCloud
//  2. URL outside every local root    -> OutcomeSkipNotLocalURL
//  3. file missing or not regular     -> OutcomeSkipFileNotFound
//  4. otherwise                       -> OutcomeMigrate, with the resolved file
//
// An error means the record could not be classified (bad path, symlink, stat failure).
func (c *Classifier) Classify(rec *FileRecord) (Outcome, *LocalFile, error) {
	if rec == nil {
		return OutcomeSkipOther, nil, errors.New("nil file record")
	}

	url := strings.TrimSpace(rec.URL)
	if url == "" || c.cloud.Match(url) {
		return OutcomeSkipNoURLOrCloud, nil, nil
	}

	root, ok := MatchRoot(c.roots, url)
	if !ok {
		return OutcomeSkipNotLocalURL, nil, nil
	}

	path, err := root.Resolve(url)
	if err != nil {
		return OutcomeSkipOther, nil, err
	}

	info, err := c.fsmgr.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OutcomeSkipFileNotFound, nil, nil
		}
		return OutcomeSkipOther, nil, fmt.Errorf("stat %s: %w", path, err)
	}

	mode := info.Mode()
	if mode&fs.ModeSymlink != 0 {
		return OutcomeSkipOther, nil, fmt.Errorf("symlinks not supported: %s", path)
	}
	if !mode.IsRegular() {
		return OutcomeSkipFileNotFound, nil, nil
	}

	return OutcomeMigrate, &LocalFile{Path: path, Root: root, Size: info.Size()}, nil
}
