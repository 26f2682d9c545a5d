package blogsync

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreRead wraps failures reading from the entry store.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite wraps failures of upserts and deletes.
	ErrStoreWrite = errors.New("store write failed")
	// ErrSyncInProgress is returned when another process holds the sync lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Stage names the step of a sync pass that failed.
type Stage string

const (
	StageList   Stage = "list"
	StageRead   Stage = "read"
	StageDelete Stage = "delete"
	StageFetch  Stage = "fetch"
	StageUpsert Stage = "upsert"
	StageLock   Stage = "lock"
)

// Label is the coarse message returned to webhook callers.
func (s Stage) Label() string {
	switch s {
	case StageList:
		return "Failed to list files"
	case StageRead:
		return "Database read error"
	case StageDelete:
		return "Database delete error"
	case StageFetch:
		return "Failed to fetch file"
	case StageUpsert:
		return "Database error"
	case StageLock:
		return "Lock error"
	}
	return "Server error"
}

// SyncError is the error returned by a failed sync pass. Path is set for
// failures tied to a single file.
type SyncError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *SyncError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("sync %s %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// StageOf reports the failed stage of err, or "" when err is not a SyncError.
func StageOf(err error) Stage {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
