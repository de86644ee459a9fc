package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mcs-go/internal/mcs"
)

// IgnoreFileName is read from the top of every scanned directory.
const IgnoreFileName = ".mcsignore"

// OSFilesystemManager is the real filesystem implementation of mcs.FilesystemManager.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Stat returns file info for path without following symlinks.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Open opens a regular file for reading. Symlinks, devices, pipes and
// sockets are refused.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if err := checkRegular(path, info.Mode()); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

func checkRegular(path string, mode fs.FileMode) error {
	switch {
	case mode&fs.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&fs.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&fs.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&fs.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	case mode.IsDir():
		return fmt.Errorf("cannot open directory as file: %s", path)
	}
	return nil
}

// FoundFile is a regular file discovered under a scanned directory.
type FoundFile struct {
	Path    string // absolute path
	RelPath string // relative to the scanned directory, slash separated
	Size    int64
}

// FindFiles discovers regular files under dir, recursively. Files and
// directories matching extra patterns or the directory's .mcsignore are
// skipped, as are symlinks and other special files. A missing dir yields no
// files.
func (m *OSFilesystemManager) FindFiles(dir string, extra []string) ([]FoundFile, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append([]string{}, defaultIgnorePatterns...), extra...)
	ignore := NewIgnoreMatcher(append(patterns, filePatterns...))

	var found []FoundFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignore.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.Match(rel) || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		found = append(found, FoundFile{Path: p, RelPath: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return found, nil
}

// Compile-time check that OSFilesystemManager implements mcs.FilesystemManager
var _ mcs.FilesystemManager = (*OSFilesystemManager)(nil)
