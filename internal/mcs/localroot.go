package mcs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LocalRoot maps a URL prefix used by the host (e.g. "/private/files/") to the
// directory the files live in.
type LocalRoot struct {
	URLPrefix string
	Dir       string
	Private   bool
}

// DefaultLocalRoots returns the public and private roots of a site directory:
//
//	/files/         -> <siteDir>/public/files
//	/private/files/ -> <siteDir>/private/files
func DefaultLocalRoots(siteDir string) []LocalRoot {
	return []LocalRoot{
		{URLPrefix: "/files/", Dir: filepath.Join(siteDir, "public", "files")},
		{URLPrefix: "/private/files/", Dir: filepath.Join(siteDir, "private", "files"), Private: true},
	}
}

// Owns reports whether url sits under this root.
func (r LocalRoot) Owns(url string) bool {
	return r.URLPrefix != "" && strings.HasPrefix(url, r.URLPrefix)
}

// Resolve converts a URL owned by this root into an absolute path on disk.
// Paths that would escape the root directory are rejected.
func (r LocalRoot) Resolve(url string) (string, error) {
	if !r.Owns(url) {
		return "", fmt.Errorf("url %q is not under %s", url, r.URLPrefix)
	}

	rel := strings.TrimPrefix(url, r.URLPrefix)
	if i := strings.IndexAny(rel, "?#"); i >= 0 {
		rel = rel[:i]
	}
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		return "", fmt.Errorf("url %q has no file path", url)
	}

	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("url %q escapes local root %s", url, r.URLPrefix)
	}

	return filepath.Join(r.Dir, cleaned), nil
}

// URLFor builds the URL a file at relPath (relative to Dir) is served from.
func (r LocalRoot) URLFor(relPath string) string {
	return strings.TrimRight(r.URLPrefix, "/") + "/" + filepath.ToSlash(relPath)
}

// MatchRoot returns the root owning url. The longest matching prefix wins.
func MatchRoot(roots []LocalRoot, url string) (LocalRoot, bool) {
	var best LocalRoot
	found := false
	for _, r := range roots {
		if !r.Owns(url) {
			continue
		}
		if !found || len(r.URLPrefix) > len(best.URLPrefix) {
			best = r
			found = true
		}
	}
	return best, found
}
