package blogsync

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RunRecorder stores the outcome of sync attempts.
type RunRecorder interface {
	StartRun(ctx context.Context, id string, started time.Time) error
	FinishRun(ctx context.Context, id string, finished time.Time, res SyncResult, runErr error) error
}

// Runner triggers sync passes for one repository. A call that arrives before
// the current pass has listed the repository shares that pass. A call that
// arrives later waits for one trailing pass, shared by every such caller, so
// no trigger is answered with a listing taken before it arrived.
type Runner struct {
	syncer  *Syncer
	ref     RepoRef
	locker  Locker
	runs    RunRecorder
	onWrite func()
	logger  *log.Logger

	group singleflight.Group
	// pass serializes passes in this process.
	pass sync.Mutex

	mu      sync.Mutex
	gen     uint64 // flight new callers join
	started bool   // whether flight gen has begun listing
}

// RunnerConfig wires a Runner. Locker and Runs are optional.
type RunnerConfig struct {
	Syncer *Syncer
	Ref    RepoRef
	Locker Locker
	Runs   RunRecorder
	// OnWrite is called after any pass that changed the store, including
	// failed passes that committed some upserts.
	OnWrite func()
	Logger  *log.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		syncer:  cfg.Syncer,
		ref:     cfg.Ref,
		locker:  cfg.Locker,
		runs:    cfg.Runs,
		onWrite: cfg.OnWrite,
		logger:  cfg.Logger,
	}
	if r.locker == nil {
		r.locker = NoopLocker()
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return r
}

// Run performs a sync pass, or joins one that has not listed yet. The pass is
// not cancelled when ctx is; it always runs to completion or failure.
func (r *Runner) Run(ctx context.Context) (SyncResult, error) {
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	if r.started {
		r.gen++
		r.started = false
	}
	gen := r.gen
	ch := r.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		r.pass.Lock()
		defer r.pass.Unlock()
		return r.runOnce(ctx, func() {
			r.mu.Lock()
			if r.gen == gen {
				r.started = true
			}
			r.mu.Unlock()
		})
	})
	r.mu.Unlock()

	out := <-ch
	if out.Shared {
		r.logger.Printf("joined pending sync")
	}
	res, _ := out.Val.(SyncResult)
	return res, out.Err
}

// runOnce calls begin once the pass holds the lock, right before it lists the
// repository.
func (r *Runner) runOnce(ctx context.Context, begin func()) (SyncResult, error) {
	id := uuid.NewString()
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		begin()
		if errors.Is(err, ErrSyncInProgress) {
			r.logger.Printf("run=%s skipped: sync lock held by another process", id)
		}
		return SyncResult{RunID: id}, &SyncError{Stage: StageLock, Err: err}
	}
	defer unlock()

	if r.runs != nil {
		if err := r.runs.StartRun(ctx, id, time.Now()); err != nil {
			r.logger.Printf("run=%s record start: %v", id, err)
		}
	}

	begin()
	res, runErr := r.syncer.run(ctx, id, r.ref)

	if r.runs != nil {
		if err := r.runs.FinishRun(ctx, id, time.Now(), res, runErr); err != nil {
			r.logger.Printf("run=%s record finish: %v", id, err)
		}
	}
	if r.onWrite != nil && (res.Synced > 0 || res.Deleted > 0) {
		r.onWrite()
	}
	return res, runErr
}
