package blogsync

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "test_blogsync.db")

	s, err := NewStore(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewStoreUnsupportedDriver(t *testing.T) {
	if _, err := NewStore(context.Background(), "mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestUpsertAndGetEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := BlogEntry{
		Slug:        "test-post",
		ContentURL:  "https://raw.githubusercontent.com/o/r/main/test.md",
		Title:       strPtr("Test Post"),
		Description: strPtr("A test post"),
		Date:        strPtr("2024-01-15"),
		Tags:        []string{"Go", "testing"},
		Author:      strPtr(`{"name":"Jane"}`),
		UpdatedAt:   updated,
	}
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}

	got, err := s.GetEntry(ctx, "test-post")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.ContentURL != entry.ContentURL {
		t.Errorf("ContentURL = %q, want %q", got.ContentURL, entry.ContentURL)
	}
	if deref(got.Title) != "Test Post" {
		t.Errorf("Title = %q, want %q", deref(got.Title), "Test Post")
	}
	if deref(got.Date) != "2024-01-15" {
		t.Errorf("Date = %q", deref(got.Date))
	}
	if got.Image != nil {
		t.Errorf("Image = %q, want nil", *got.Image)
	}
	if deref(got.Author) != `{"name":"Jane"}` {
		t.Errorf("Author = %q", deref(got.Author))
	}
	if !reflect.DeepEqual(got.Tags, []string{"Go", "testing"}) {
		t.Errorf("Tags = %v, want [Go testing]", got.Tags)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, updated)
	}
	if got.Link() != "/blog/test-post" {
		t.Errorf("Link = %q", got.Link())
	}
}

func TestUpsertEntryUpdatesInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := BlogEntry{
		Slug:       "moved",
		ContentURL: "https://raw.githubusercontent.com/o/r/main/old/moved.md",
		Title:      strPtr("Moved"),
		Image:      strPtr("/a.png"),
		Tags:       []string{"a"},
		UpdatedAt:  time.Now(),
	}
	if err := s.UpsertEntry(ctx, first); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	second := first
	second.ContentURL = "https://raw.githubusercontent.com/o/r/main/new/moved.md"
	second.Image = nil
	second.Tags = nil
	if err := s.UpsertEntry(ctx, second); err != nil {
		t.Fatalf("UpsertEntry update: %v", err)
	}

	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ContentURL != second.ContentURL {
		t.Errorf("ContentURL = %q, want %q", got.ContentURL, second.ContentURL)
	}
	if got.Image != nil {
		t.Errorf("Image = %q, want nil after update", *got.Image)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty", got.Tags)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetEntry(context.Background(), "nonexistent")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteByContentURL(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, slug := range []string{"a", "b", "c"} {
		if err := s.UpsertEntry(ctx, BlogEntry{Slug: slug, ContentURL: "u/" + slug, UpdatedAt: time.Now()}); err != nil {
			t.Fatalf("UpsertEntry %s: %v", slug, err)
		}
	}

	n, err := s.DeleteByContentURL(ctx, []string{"u/a", "u/c", "u/missing"})
	if err != nil {
		t.Fatalf("DeleteByContentURL: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	urls, err := s.ContentURLs(ctx)
	if err != nil {
		t.Fatalf("ContentURLs: %v", err)
	}
	if !reflect.DeepEqual(urls, []string{"u/b"}) {
		t.Errorf("remaining = %v, want [u/b]", urls)
	}

	if n, err := s.DeleteByContentURL(ctx, nil); err != nil || n != 0 {
		t.Errorf("empty delete = %d, %v; want 0, nil", n, err)
	}
}

func TestListEntriesOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, e := range []BlogEntry{
		{Slug: "undated", ContentURL: "u/1", UpdatedAt: now},
		{Slug: "old", ContentURL: "u/2", Date: strPtr("2023-01-01"), UpdatedAt: now},
		{Slug: "new", ContentURL: "u/3", Date: strPtr("2024-06-01"), UpdatedAt: now},
	} {
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("UpsertEntry: %v", err)
		}
	}
	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	var slugs []string
	for _, e := range entries {
		slugs = append(slugs, e.Slug)
	}
	if !reflect.DeepEqual(slugs, []string{"new", "old", "undated"}) {
		t.Errorf("order = %v, want [new old undated]", slugs)
	}
}

func TestRunLog(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	if err := s.StartRun(ctx, "run-ok", start); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := s.FinishRun(ctx, "run-ok", start.Add(time.Second), SyncResult{Synced: 3, Deleted: 1}, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := s.StartRun(ctx, "run-bad", start.Add(2*time.Second)); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	runErr := &SyncError{Stage: StageFetch, Path: "c.md", Err: errors.New("status 500")}
	if err := s.FinishRun(ctx, "run-bad", start.Add(3*time.Second), SyncResult{Synced: 2}, runErr); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := s.StartRun(ctx, "run-old", time.Now().AddDate(0, 0, -40)); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].ID != "run-bad" || runs[0].Stage != "fetch" || runs[0].Synced != 2 {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].ID != "run-ok" || runs[1].Deleted != 1 || runs[1].Error != "" || runs[1].FinishedAt == nil {
		t.Errorf("second run = %+v", runs[1])
	}
	if runs[2].FinishedAt != nil {
		t.Errorf("unfinished run has FinishedAt %v", runs[2].FinishedAt)
	}

	n, err := s.PruneRuns(ctx, 30)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	runs, _ = s.ListRuns(ctx, 10)
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"run-bad", "run-ok"}) {
		t.Errorf("remaining runs = %v", ids)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialects[DriverPostgres]}
	if got := pg.rebind(`SELECT a FROM t WHERE b = ? AND c IN (?, ?)`); got != `SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)` {
		t.Errorf("rebind = %q", got)
	}
	lite := &Store{dialect: dialects[DriverSQLite]}
	if got := lite.rebind(`x = ?`); got != `x = ?` {
		t.Errorf("rebind sqlite = %q", got)
	}
}
