package records_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"mcs-go/internal/mcs"
	"mcs-go/internal/records"
	"mcs-go/internal/testutil"
)

var recordColumns = []string{"name", "file_name", "file_url", "is_private", "attached_to_doctype", "attached_to_name", "content_hash", "folder"}

func newMockSource(t *testing.T, table string) (*records.PostgresSource, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})
	return records.NewPostgresSourceFromDB(db, table, testutil.FixedClock()), mock
}

func TestPostgresSource_ListRecords(t *testing.T) {
	src, mock := newMockSource(t, "")

	mock.ExpectQuery(`SELECT name, .* FROM "tabFile"\s+WHERE COALESCE\(is_folder, 0\) = 0 AND name > \$1\s+ORDER BY name\s+LIMIT \$2`).
		WithArgs("f01", 2).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("f02", "a.png", "/files/a.png", int64(0), "", "", "", "Home").
			AddRow("f03", "b.pdf", "/private/files/b.pdf", int64(1), "Sales Invoice", "SINV-1", "", "Home/Attachments"))

	page, err := src.ListRecords(context.Background(), "f01", 2)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	if page[0].IsPrivate || page[0].URL != "/files/a.png" {
		t.Errorf("page[0] = %+v", page[0])
	}
	want := mcs.FileRecord{
		ID:             "f03",
		FileName:       "b.pdf",
		URL:            "/private/files/b.pdf",
		IsPrivate:      true,
		AttachedToType: "Sales Invoice",
		AttachedToName: "SINV-1",
		Folder:         "Home/Attachments",
	}
	if *page[1] != want {
		t.Errorf("page[1] = %+v, want %+v", page[1], want)
	}
}

func TestPostgresSource_ListRecords_QueryError(t *testing.T) {
	src, mock := newMockSource(t, "")
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection reset"))

	if _, err := src.ListRecords(context.Background(), "", 10); err == nil {
		t.Fatal("ListRecords() expected error")
	}
}

func TestPostgresSource_CustomTable(t *testing.T) {
	src, mock := newMockSource(t, "File Attachments")

	mock.ExpectQuery(`FROM "File Attachments"`).
		WithArgs("", 5).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	page, err := src.ListRecords(context.Background(), "", 5)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(page) != 0 {
		t.Errorf("len(page) = %d, want 0", len(page))
	}
}

func TestPostgresSource_GetRecord(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		src, mock := newMockSource(t, "")
		mock.ExpectQuery(`FROM "tabFile"\s+WHERE COALESCE\(is_folder, 0\) = 0 AND name = \$1`).
			WithArgs("f07").
			WillReturnRows(sqlmock.NewRows(recordColumns).
				AddRow("f07", "c.csv", "/files/c.csv", int64(0), "Data Import", "DI-1", "", "Home"))

		rec, err := src.GetRecord(context.Background(), "f07")
		if err != nil {
			t.Fatalf("GetRecord() error = %v", err)
		}
		if rec.URL != "/files/c.csv" || rec.AttachedToType != "Data Import" || rec.IsPrivate {
			t.Errorf("GetRecord() = %+v", rec)
		}
	})

	t.Run("missing", func(t *testing.T) {
		src, mock := newMockSource(t, "")
		mock.ExpectQuery(`FROM "tabFile"`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(recordColumns))

		_, err := src.GetRecord(context.Background(), "nope")
		if !errors.Is(err, mcs.ErrNotFound) {
			t.Errorf("GetRecord() error = %v, want ErrNotFound", err)
		}
	})
}

func TestPostgresSource_UpdateRecord(t *testing.T) {
	update := mcs.RecordUpdate{
		URL:         "/api/v1/files/generate?key=private%3Ak&file_name=b.pdf",
		ContentHash: "private:k",
		Folder:      "Home/Attachments",
	}

	t.Run("updates one row", func(t *testing.T) {
		src, mock := newMockSource(t, "")
		mock.ExpectExec(`UPDATE "tabFile"\s+SET file_url = \$1, content_hash = \$2, folder = \$3, old_parent = \$3, modified = \$4\s+WHERE name = \$5`).
			WithArgs(update.URL, update.ContentHash, update.Folder, sqlmock.AnyArg(), "f03").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := src.UpdateRecord(context.Background(), "f03", update); err != nil {
			t.Fatalf("UpdateRecord() error = %v", err)
		}
	})

	t.Run("missing row", func(t *testing.T) {
		src, mock := newMockSource(t, "")
		mock.ExpectExec(`UPDATE "tabFile"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := src.UpdateRecord(context.Background(), "gone", update)
		if !errors.Is(err, mcs.ErrNotFound) {
			t.Errorf("UpdateRecord() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("exec failure", func(t *testing.T) {
		src, mock := newMockSource(t, "")
		mock.ExpectExec(`UPDATE "tabFile"`).WillReturnError(errors.New("deadlock detected"))

		if err := src.UpdateRecord(context.Background(), "f03", update); err == nil {
			t.Fatal("UpdateRecord() expected error")
		}
	})
}
