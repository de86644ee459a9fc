package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mcs-go/internal/app"
	"mcs-go/internal/mcs"
)

func TestRenderReport(t *testing.T) {
	report := &mcs.Report{
		Total:               4,
		Migrated:            2,
		Skipped:             1,
		SkippedFileNotFound: 1,
		Errors:              []mcs.RecordError{{File: "FILE-0004", Error: "uploading: access denied"}},
	}

	var buf bytes.Buffer
	renderReport(&buf, report)
	out := buf.String()

	for _, want := range []string{"Examined 4 record(s)", "migrated", "skipped, file not found", "FILE-0004: uploading: access denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderReport() output missing %q:\n%s", want, out)
		}
	}
	for _, absent := range []string{"not a local URL", "already in cloud", "skipped, other"} {
		if strings.Contains(out, absent) {
			t.Errorf("renderReport() printed zero counter %q:\n%s", absent, out)
		}
	}
}

func TestRenderUpload(t *testing.T) {
	tests := []struct {
		name string
		res  *app.UploadResult
		want string
	}{
		{
			name: "uploaded",
			res:  &app.UploadResult{ID: "FILE-0001", Uploaded: true, URL: "https://cloud.test/public/k"},
			want: "Uploaded FILE-0001\n  https://cloud.test/public/k\n",
		},
		{
			name: "ignored",
			res:  &app.UploadResult{ID: "FILE-0002", Reason: app.ReasonIgnoredDoctype},
			want: "Left FILE-0002 in place (ignored_doctype)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderUpload(&buf, tt.res)
			if got := buf.String(); got != tt.want {
				t.Errorf("renderUpload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderReport_TruncatesErrors(t *testing.T) {
	report := &mcs.Report{Total: 13}
	for i := range 13 {
		report.Errors = append(report.Errors, mcs.RecordError{File: fmt.Sprintf("FILE-%04d", i), Error: "boom"})
	}

	var buf bytes.Buffer
	renderReport(&buf, report)
	out := buf.String()

	if got := strings.Count(out, ": boom"); got != maxErrorLines {
		t.Errorf("printed %d error lines, want %d", got, maxErrorLines)
	}
	if !strings.Contains(out, "... and 3 more") {
		t.Errorf("missing truncation line:\n%s", out)
	}
}

func TestReadPassphrase(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv(app.EnvPassphrase, "from-env")
		got, err := readPassphrase()
		if err != nil {
			t.Fatalf("readPassphrase() error = %v", err)
		}
		if got != "from-env" {
			t.Errorf("readPassphrase() = %q, want %q", got, "from-env")
		}
	})

	t.Run("new passphrase mismatch", func(t *testing.T) {
		t.Setenv(app.EnvPassphrase, "")
		answers := [][]byte{[]byte("one\n"), []byte("two\n")}
		orig := readPassword
		t.Cleanup(func() { readPassword = orig })
		readPassword = func(int) ([]byte, error) {
			a := answers[0]
			answers = answers[1:]
			return a, nil
		}

		if _, err := promptNewPassphrase(); err == nil || err.Error() != "passphrases do not match" {
			t.Errorf("promptNewPassphrase() error = %v, want mismatch", err)
		}
	})

	t.Run("read error", func(t *testing.T) {
		orig := readPassword
		t.Cleanup(func() { readPassword = orig })
		readPassword = func(int) ([]byte, error) { return nil, errors.New("not a tty") }

		if _, err := promptSecret("x: "); err == nil {
			t.Error("promptSecret() error = nil, want error")
		}
	})
}
