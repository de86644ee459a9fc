package mcs_test

import (
	"regexp"
	"strings"
	"testing"

	"mcs-go/internal/mcs"
	"mcs-go/internal/testutil"
)

func TestKeyGenerator_Generate(t *testing.T) {
	fixed := func() string { return "AB12CD34" }

	tests := []struct {
		name       string
		folder     string
		fileName   string
		attachedTo string
		want       string
	}{
		{
			name:     "defaults attached type to File",
			fileName: "invoice.pdf",
			want:     "2026/03/14/File/AB12CD34_invoice.pdf",
		},
		{
			name:       "with folder and doctype",
			folder:     "/tenant-a/",
			fileName:   "invoice.pdf",
			attachedTo: "Sales Invoice",
			want:       "tenant-a/2026/03/14/Sales Invoice/AB12CD34_invoice.pdf",
		},
		{
			name:     "sanitizes file name",
			fileName: "my résumé (final).docx",
			want:     "2026/03/14/File/AB12CD34_my_rsum_final.docx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mcs.NewKeyGenerator(tt.folder, testutil.FixedClock(), fixed)
			if got := g.Generate(tt.fileName, tt.attachedTo); got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRandomSuffix(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s := mcs.RandomSuffix()
		if !re.MatchString(s) {
			t.Fatalf("RandomSuffix() = %q, want 8 chars from A-Z0-9", s)
		}
		seen[s] = true
	}
	if len(seen) < 45 {
		t.Errorf("RandomSuffix() produced only %d distinct values in 50 calls", len(seen))
	}
}

func TestRandomSuffix_EveryPositionUsesWholeAlphabet(t *testing.T) {
	var seen [8]map[rune]bool
	for i := range seen {
		seen[i] = make(map[rune]bool)
	}
	for i := 0; i < 2000; i++ {
		for pos, c := range mcs.RandomSuffix() {
			seen[pos][c] = true
		}
	}
	for pos, chars := range seen {
		if len(chars) != 36 {
			t.Errorf("position %d saw %d distinct characters, want 36", pos, len(chars))
		}
	}
}

func TestContentHash_RoundTrip(t *testing.T) {
	tests := []struct {
		hash    string
		wantKey string
		wantVis mcs.Visibility
	}{
		{hash: mcs.ContentHash("a/b.txt", mcs.Private), wantKey: "a/b.txt", wantVis: mcs.Private},
		{hash: mcs.ContentHash("a/b.txt", mcs.Public), wantKey: "a/b.txt", wantVis: mcs.Public},
		{hash: "  public: x/y.png ", wantKey: "x/y.png", wantVis: mcs.Public},
		{hash: "legacy/key.png", wantKey: "legacy/key.png", wantVis: mcs.Private},
		{hash: "", wantKey: "", wantVis: mcs.Private},
	}

	for _, tt := range tests {
		key, vis := mcs.ParseContentHash(tt.hash)
		if key != tt.wantKey || vis != tt.wantVis {
			t.Errorf("ParseContentHash(%q) = (%q, %v), want (%q, %v)", tt.hash, key, vis, tt.wantKey, tt.wantVis)
		}
	}
}

func TestPrivateURL(t *testing.T) {
	got := mcs.PrivateURL("/api/v1/files/generate", "private:2026/03/14/File/X_a b.pdf", "a b.pdf")

	if !strings.HasPrefix(got, "/api/v1/files/generate?key=private%3A2026%2F03%2F14%2FFile%2FX_a+b.pdf") {
		t.Errorf("PrivateURL() = %q, want escaped key", got)
	}
	if !strings.HasSuffix(got, "&file_name=a+b.pdf") {
		t.Errorf("PrivateURL() = %q, want escaped file name", got)
	}
}
