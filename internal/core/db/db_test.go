package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open("mysql://localhost/db")
	if err == nil || !strings.Contains(err.Error(), "unsupported database scheme") {
		t.Errorf("Open() error = %v, want unsupported scheme", err)
	}
}

func TestURLForDataDir(t *testing.T) {
	got := URLForDataDir("/var/lib/smsfilter")
	if got != "sqlite:///var/lib/smsfilter/smsfilter.db" {
		t.Errorf("URLForDataDir() = %q", got)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	conn := openTestDB(t)

	if err := MigrateUp(conn); err != nil {
		t.Fatalf("first MigrateUp() error = %v", err)
	}
	if err := MigrateUp(conn); err != nil {
		t.Fatalf("second MigrateUp() error = %v", err)
	}

	statuses, err := MigrateStatus(conn)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("MigrateStatus() returned no migrations")
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s not applied: %+v", s.ID, s)
		}
	}
}

func TestMigrateStatus_Pending(t *testing.T) {
	conn := openTestDB(t)

	statuses, err := MigrateStatus(conn)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v", err)
	}
	for _, s := range statuses {
		if s.Applied {
			t.Errorf("migration %s applied on a fresh database", s.ID)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	conn := openTestDB(t)
	if err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := conn.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	err := MigrateUp(conn)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("MigrateUp() error = %v, want checksum mismatch", err)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (y INT);\n"
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("splitStatements() = %q, want 2 statements", got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Errorf("statement 0 = %q", got[0])
	}
}

func TestQueries_InTxRollsBack(t *testing.T) {
	conn := openTestDB(t)
	if err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	q, err := LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v", err)
	}

	ctx := context.Background()
	boom := errors.New("boom")
	err = q.InTx(ctx, func(tx *Queries) error {
		if _, err := tx.Exec(ctx, "insert-blocked-message", "m1", "s", "b", "2024-01-01T00:00:00.000000000Z", false, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	var count int
	if err := conn.Get(&count, "SELECT COUNT(*) FROM blocked_messages"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d after rollback, want 0", count)
	}
}

func TestQueries_UnknownName(t *testing.T) {
	q, err := LoadQueries(openTestDB(t))
	if err != nil {
		t.Fatalf("LoadQueries() error = %v", err)
	}
	if err := q.Get(context.Background(), "no-such-query", new(int)); err == nil {
		t.Error("Get() with unknown query succeeded")
	}
}
