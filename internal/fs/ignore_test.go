package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher([]string{"", "   ", "# previews", "*.log", "!keep.log", "/thumbs/", "cache/tmp/", "!", "/"})

	want := []ignoreRule{
		{glob: "*.log"},
		{glob: "keep.log", negate: true},
		{glob: "thumbs", dirOnly: true, full: true},
		{glob: "cache/tmp", dirOnly: true, full: true},
	}
	if len(m.rules) != len(want) {
		t.Fatalf("compiled %d rules, want %d: %+v", len(m.rules), len(want), m.rules)
	}
	for i := range want {
		if m.rules[i] != want[i] {
			t.Errorf("rule %d = %+v, want %+v", i, m.rules[i], want[i])
		}
	}
}

func TestIgnoreMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		dir      bool
		want     bool
	}{
		{"base name glob at root", []string{"*.tmp"}, "upload.tmp", false, true},
		{"base name glob at depth", []string{"*.tmp"}, "2024/03/upload.tmp", false, true},
		{"base name glob misses", []string{"*.tmp"}, "invoice.pdf", false, false},
		{"office lock file", []string{"~$*"}, "reports/~$budget.xlsx", false, true},
		{"path glob anchored to root", []string{"exports/*.csv"}, "exports/march.csv", false, true},
		{"path glob does not float", []string{"exports/*.csv"}, "old/exports/march.csv", false, false},
		{"leading slash anchors", []string{"/draft.docx"}, "draft.docx", false, true},
		{"anchored glob does not float", []string{"/draft.docx"}, "old/draft.docx", false, false},
		{"dir rule skips directory", []string{"thumbs/"}, "products/thumbs", true, true},
		{"dir rule ignores file of same name", []string{"thumbs/"}, "thumbs", false, false},
		{"plain rule matches directory", []string{"cache"}, "cache", true, true},
		{"negation re-includes", []string{"*.log", "!audit.log"}, "audit.log", false, false},
		{"later rule wins over negation", []string{"!audit.log", "*.log"}, "audit.log", false, true},
		{"malformed glob never matches", []string{"[invalid"}, "[invalid", false, false},
		{"empty path", []string{"*"}, "", false, false},
		{"root itself", []string{"*"}, ".", true, false},
		{"no rules", nil, "anything.pdf", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewIgnoreMatcher(tt.patterns)
			p := filepath.FromSlash(tt.path)

			var got bool
			if tt.dir {
				got = m.MatchDir(p)
			} else {
				got = m.Match(p)
			}
			if got != tt.want {
				t.Errorf("match(%q, dir=%v) with %q = %v, want %v", tt.path, tt.dir, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestDefaultIgnorePatterns(t *testing.T) {
	m := NewIgnoreMatcher(defaultIgnorePatterns)
	for _, p := range []string{IgnoreFileName, ".DS_Store", "a/upload.part", "scan.tmp", "~$contract.docx"} {
		if !m.Match(p) {
			t.Errorf("default patterns do not ignore %q", p)
		}
	}
	if m.Match("contract.docx") {
		t.Error("default patterns ignore an ordinary file")
	}
}

func TestParseIgnoreFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		got, err := ParseIgnoreFile(filepath.Join(dir, "absent"))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if got != nil {
			t.Errorf("ParseIgnoreFile() = %q, want nil", got)
		}
	})

	t.Run("returns every line", func(t *testing.T) {
		p := filepath.Join(dir, IgnoreFileName)
		if err := os.WriteFile(p, []byte("# scanner output\nthumbs/\n\n!keep.tmp\n"), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := ParseIgnoreFile(p)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		want := []string{"# scanner output", "thumbs/", "", "!keep.tmp"}
		if len(got) != len(want) {
			t.Fatalf("ParseIgnoreFile() = %q, want %q", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("unreadable path", func(t *testing.T) {
		if _, err := ParseIgnoreFile(dir); err == nil {
			t.Error("ParseIgnoreFile(directory) error = nil, want error")
		}
	})
}
