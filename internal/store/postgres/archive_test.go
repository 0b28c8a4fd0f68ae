package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/vocalis/internal/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if VOCALIS_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOCALIS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOCALIS_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestArchive creates a fresh [postgres.Archive] with a clean table.
func newTestArchive(t *testing.T) *postgres.Archive {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect for cleanup: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, `DROP TABLE IF EXISTS transcript_revisions`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	a, err := postgres.NewArchive(ctx, dsn)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestArchive_RecordAndHistory(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	revs := []postgres.Revision{
		{UserID: "1", TranscriptionID: "1", Version: 1, Folder: "01-01-2026_1", Text: "hello world"},
		{UserID: "1", TranscriptionID: "1", Version: 2, Folder: "01-01-2026_1", Text: "hello there"},
		{UserID: "2", TranscriptionID: "1", Version: 1, Folder: "01-01-2026_1", Text: "someone else"},
	}
	for _, rev := range revs {
		if err := a.Record(ctx, rev); err != nil {
			t.Fatalf("Record(%+v): %v", rev, err)
		}
	}

	// Re-recording the same version is a no-op, not an error.
	if err := a.Record(ctx, revs[0]); err != nil {
		t.Fatalf("duplicate Record: %v", err)
	}

	history, err := a.History(ctx, "1", "1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d revisions, want 2", len(history))
	}
	if history[0].Version != 1 || history[1].Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", history[0].Version, history[1].Version)
	}
}

func TestArchive_SearchReturnsLatestVersionPerUser(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	seed := []postgres.Revision{
		{UserID: "1", TranscriptionID: "1", Version: 1, Text: "grocery list milk and eggs"},
		{UserID: "1", TranscriptionID: "1", Version: 2, Text: "grocery list milk eggs and butter"},
		{UserID: "1", TranscriptionID: "2", Version: 1, Text: "meeting notes from tuesday"},
		{UserID: "2", TranscriptionID: "1", Version: 1, Text: "grocery run on friday"},
	}
	for _, rev := range seed {
		if err := a.Record(ctx, rev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	results, err := a.Search(ctx, "1", "grocery", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (other user's rows excluded)", len(results))
	}
	if results[0].Version != 2 {
		t.Errorf("result version = %d, want latest (2)", results[0].Version)
	}

	none, err := a.Search(ctx, "1", "volcano", 10)
	if err != nil {
		t.Fatalf("Search (no match): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d results for non-matching query, want 0", len(none))
	}
}
