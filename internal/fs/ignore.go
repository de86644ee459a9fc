package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns apply before config and .mcsignore patterns.
// Hosts leave lock and partial files next to attachments while writing them.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store", "*.tmp", "*.part", "~$*"}

// ignoreRule is one compiled line of an ignore list.
type ignoreRule struct {
	glob    string
	negate  bool // "!glob" re-includes what an earlier rule excluded
	dirOnly bool // "glob/" only applies to directories
	full    bool // matched against the whole relative path instead of the base name
}

func (r ignoreRule) matches(slashPath string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	subject := path.Base(slashPath)
	if r.full {
		subject = slashPath
	}
	ok, err := path.Match(r.glob, subject)
	return err == nil && ok
}

// IgnoreMatcher decides which files a scan skips. Rules follow a subset of
// gitignore: a glob without "/" matches the base name at any depth, a glob
// with "/" (including a leading one) matches the path relative to the scan
// root, a trailing "/" restricts the rule to directories and a leading
// "!" re-includes. The last matching rule wins.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher compiles rawPatterns. Blank lines and "#" comments are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range rawPatterns {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}

		var r ignoreRule
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		anchored := strings.HasPrefix(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		r.glob = line
		r.full = anchored || strings.Contains(line, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether the file at relativePath is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	return m.ignored(relativePath, false)
}

// MatchDir reports whether the directory at relativePath is ignored.
func (m *IgnoreMatcher) MatchDir(relativePath string) bool {
	return m.ignored(relativePath, true)
}

func (m *IgnoreMatcher) ignored(relativePath string, isDir bool) bool {
	if relativePath == "" || relativePath == "." {
		return false
	}
	p := filepath.ToSlash(relativePath)

	ignored := false
	for _, r := range m.rules {
		if r.matches(p, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

// ParseIgnoreFile returns the lines of the ignore file at path, or nil when
// there is no such file.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}
	return lines, nil
}
