package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		d     Dialect
		query string
		want  string
	}{
		{SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{Postgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
	}
	for _, tt := range tests {
		if got := tt.d.Rebind(tt.query); got != tt.want {
			t.Errorf("%s Rebind(%q) = %q, want %q", tt.d, tt.query, got, tt.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": SQLite, "sqlite": SQLite, "Postgres": Postgres, "pgx": Postgres} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Error("expected error for mysql")
	}
}

func TestRetryable(t *testing.T) {
	if SQLite.Retryable(nil) {
		t.Error("nil error should not be retryable")
	}
	if SQLite.Retryable(errors.New("boom")) {
		t.Error("plain error should not be retryable")
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLedgerRow(t *testing.T, db *DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO families (id, name) VALUES (1, 'Smith')`,
		`INSERT INTO accounts (id, family_id, name, role) VALUES (1, 1, 'Amy', 'child')`,
		`INSERT INTO integral_history (child_id, family_id, source_type, source_id, amount, event_date)
			VALUES (1, 1, 'task', 7, 5, CURRENT_TIMESTAMP)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	seedLedgerRow(t, db)

	if _, err := db.Exec(`UPDATE integral_history SET amount = 50`); err == nil {
		t.Error("expected update to be rejected")
	}
	if _, err := db.Exec(`DELETE FROM integral_history`); err == nil {
		t.Error("expected delete to be rejected")
	}
}

func TestLedgerRejectsDuplicateItemReward(t *testing.T) {
	db := openTestDB(t)
	seedLedgerRow(t, db)

	_, err := db.Exec(`INSERT INTO integral_history (child_id, family_id, source_type, source_id, amount, event_date)
		VALUES (1, 1, 'task', 7, 5, CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Error("expected unique violation for second reward of the same task")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO families (name) VALUES ('Gone')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM families`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("families = %d, want 0 after rollback", n)
	}
}

func TestWithTxCommits(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO families (name) VALUES ('Kept')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM families`).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "Kept" {
		t.Errorf("name = %q, want Kept", name)
	}
}
