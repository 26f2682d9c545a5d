package blogsync

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingLister struct {
	entries []BlogEntry
	err     error
	calls   int
}

func (l *countingLister) ListEntries(ctx context.Context) ([]BlogEntry, error) {
	l.calls++
	return l.entries, l.err
}

func TestEntryCacheLoadsOnce(t *testing.T) {
	l := &countingLister{entries: []BlogEntry{{Slug: "a"}, {Slug: "b"}}}
	c := NewEntryCache(l, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entries, err := c.ListEntries(ctx, "")
		if err != nil {
			t.Fatalf("ListEntries: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
	}
	if l.calls != 1 {
		t.Errorf("store called %d times, want 1", l.calls)
	}

	c.Invalidate()
	if _, err := c.ListEntries(ctx, ""); err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if l.calls != 2 {
		t.Errorf("store called %d times after invalidate, want 2", l.calls)
	}
}

func TestEntryCacheExpires(t *testing.T) {
	l := &countingLister{entries: []BlogEntry{{Slug: "a"}}}
	c := NewEntryCache(l, time.Millisecond)
	ctx := context.Background()

	c.ListEntries(ctx, "")
	time.Sleep(5 * time.Millisecond)
	c.ListEntries(ctx, "")
	if l.calls != 2 {
		t.Errorf("store called %d times, want 2", l.calls)
	}
}

func TestEntryCacheEmptyStoreIsCached(t *testing.T) {
	l := &countingLister{}
	c := NewEntryCache(l, time.Minute)
	entries, err := c.ListEntries(context.Background(), "")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %#v, want empty slice", entries)
	}
	c.ListEntries(context.Background(), "")
	if l.calls != 1 {
		t.Errorf("store called %d times, want 1", l.calls)
	}
}

func TestEntryCacheTagFilter(t *testing.T) {
	l := &countingLister{entries: []BlogEntry{
		{Slug: "a", Tags: []string{"Go", "web"}},
		{Slug: "b", Tags: []string{"rust"}},
		{Slug: "c", Tags: []string{" go "}},
	}}
	c := NewEntryCache(l, time.Minute)

	got, err := c.ListEntries(context.Background(), "GO")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(got) != 2 || got[0].Slug != "a" || got[1].Slug != "c" {
		t.Errorf("filtered = %+v, want a and c", got)
	}

	got, _ = c.ListEntries(context.Background(), "python")
	if got == nil || len(got) != 0 {
		t.Errorf("no match = %#v, want empty slice", got)
	}
}

func TestEntryCacheGetEntry(t *testing.T) {
	l := &countingLister{entries: []BlogEntry{{Slug: "a"}}}
	c := NewEntryCache(l, time.Minute)

	e, err := c.GetEntry(context.Background(), "a")
	if err != nil || e.Slug != "a" {
		t.Errorf("GetEntry(a) = %+v, %v", e, err)
	}
	if _, err := c.GetEntry(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntry(missing) err = %v, want ErrNotFound", err)
	}
}

func TestEntryCacheStoreError(t *testing.T) {
	l := &countingLister{err: errors.New("db down")}
	c := NewEntryCache(l, time.Minute)
	if _, err := c.ListEntries(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	l.err = nil
	l.entries = []BlogEntry{{Slug: "a"}}
	entries, err := c.ListEntries(context.Background(), "")
	if err != nil || len(entries) != 1 {
		t.Errorf("after recovery = %v, %v", entries, err)
	}
}
