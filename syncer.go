package blogsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gitfool/blogsync/frontmatter"
	"github.com/gitfool/blogsync/source"
)

// Source lists and reads markdown files of a repository.
type Source interface {
	ListMarkdownFiles(ctx context.Context, owner, repo, root string) ([]string, error)
	FetchContent(ctx context.Context, owner, repo, branch, path string) (string, error)
}

// EntryStore is the persistence the syncer reconciles against.
type EntryStore interface {
	ContentURLs(ctx context.Context) ([]string, error)
	DeleteByContentURL(ctx context.Context, urls []string) (int, error)
	UpsertEntry(ctx context.Context, e BlogEntry) error
}

// Syncer mirrors a repository's markdown files into an EntryStore.
type Syncer struct {
	source Source
	store  EntryStore
	logger *log.Logger
	now    func() time.Time
	root   string
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

// WithRoot limits the walk to a subdirectory of the repository.
func WithRoot(root string) SyncerOption {
	return func(s *Syncer) { s.root = root }
}

// NewSyncer creates a Syncer. If logger is nil, a default logger writing to
// stderr is used.
func NewSyncer(src Source, store EntryStore, logger *log.Logger, opts ...SyncerOption) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	s := &Syncer{
		source: src,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one reconciliation pass for ref:
//
//  1. list every markdown file of the repository,
//  2. delete stored entries whose content_url is no longer listed,
//  3. fetch, parse and upsert every listed file, keyed on its slug.
//
// The first failure aborts the pass. Upserts issued before the failure stay
// committed; nothing is rolled back.
func (s *Syncer) Sync(ctx context.Context, ref RepoRef) (SyncResult, error) {
	return s.run(ctx, uuid.NewString(), ref)
}

func (s *Syncer) run(ctx context.Context, runID string, ref RepoRef) (SyncResult, error) {
	res := SyncResult{RunID: runID}
	logf := func(format string, args ...any) {
		s.logger.Printf("run=%s "+format, append([]any{runID}, args...)...)
	}

	logf("starting sync of %s/%s@%s", ref.Owner, ref.Repo, ref.Branch)
	files, err := s.source.ListMarkdownFiles(ctx, ref.Owner, ref.Repo, s.root)
	if err != nil {
		logf("listing failed: %v", err)
		return res, &SyncError{Stage: StageList, Err: err}
	}
	logf("found %d markdown files", len(files))

	current := make(map[string]struct{}, len(files))
	for _, p := range files {
		current[source.CanonicalURL(ref.Owner, ref.Repo, ref.Branch, p)] = struct{}{}
	}

	persisted, err := s.store.ContentURLs(ctx)
	if err != nil {
		logf("reading stored urls failed: %v", err)
		return res, &SyncError{Stage: StageRead, Err: fmt.Errorf("%w: %v", ErrStoreRead, err)}
	}

	stale := staleURLs(persisted, current)
	if len(stale) > 0 {
		n, err := s.store.DeleteByContentURL(ctx, stale)
		if err != nil {
			logf("deleting %d stale entries failed: %v", len(stale), err)
			return res, &SyncError{Stage: StageDelete, Err: fmt.Errorf("%w: %v", ErrStoreWrite, err)}
		}
		res.Deleted = n
		logf("deleted %d removed entries", n)
	}

	seen := make(map[string]string, len(files))
	for _, p := range files {
		raw, err := s.source.FetchContent(ctx, ref.Owner, ref.Repo, ref.Branch, p)
		if err != nil {
			logf("fetch failed after %d upserts: %v", res.Synced, err)
			return res, &SyncError{Stage: StageFetch, Path: p, Err: err}
		}

		meta, _, perr := frontmatter.Parse(raw)
		if perr != nil {
			logf("%s: ignoring malformed frontmatter: %v", p, perr)
		}

		entry := BlogEntry{
			Slug:        GenerateSlug(meta.Title, p),
			ContentURL:  source.CanonicalURL(ref.Owner, ref.Repo, ref.Branch, p),
			Title:       meta.Title,
			Description: meta.Description,
			Date:        meta.Date,
			Tags:        meta.Tags,
			Image:       meta.Image,
			Author:      meta.Author,
			UpdatedAt:   s.now(),
		}
		if prev, dup := seen[entry.Slug]; dup {
			logf("slug %q of %s overwrites %s", entry.Slug, p, prev)
		}
		seen[entry.Slug] = p

		if err := s.store.UpsertEntry(ctx, entry); err != nil {
			logf("upsert of %s failed after %d upserts: %v", p, res.Synced, err)
			return res, &SyncError{Stage: StageUpsert, Path: p, Err: fmt.Errorf("%w: %v", ErrStoreWrite, err)}
		}
		res.Synced++
	}

	logf("sync complete: %d synced, %d deleted", res.Synced, res.Deleted)
	return res, nil
}

// staleURLs returns the persisted urls missing from current, in persisted
// order and without duplicates.
func staleURLs(persisted []string, current map[string]struct{}) []string {
	var stale []string
	seen := make(map[string]struct{})
	for _, u := range persisted {
		if _, ok := current[u]; ok {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		stale = append(stale, u)
	}
	return stale
}
