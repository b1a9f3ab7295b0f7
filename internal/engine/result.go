package engine

import (
	"errors"
	"fmt"
)

// Stage is one step of an export run.
type Stage string

const (
	StageListing    Stage = "listing"
	StageFetching   Stage = "fetching"
	StageArchiving  Stage = "archiving"
	StagePurging    Stage = "purging"
	StagePublishing Stage = "publishing"
	StageNotifying  Stage = "notifying"
)

// State is the terminal state of an export run.
type State string

const (
	StateDone State = "done"
	// StateFailed means the migration itself failed; source objects may or may
	// not have been purged depending on Result.Stage.
	StateFailed State = "failed"
	// StateNotifyFailed means the archive was published and the sources purged,
	// only the callback failed. Retrying the callback alone is safe.
	StateNotifyFailed State = "notify_failed"
)

// ErrNotifyFailed is wrapped by the error returned from a run that ended in
// StateNotifyFailed.
var ErrNotifyFailed = errors.New("archive published but notification failed")

// StageError records the stage, and key when there is one, where a run failed.
type StageError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result summarizes an export run. Stage is the stage a failed run stopped in
// and is empty once the run is done.
type Result struct {
	RunID       string   `json:"run_id"`
	Destination string   `json:"destination"`
	State       State    `json:"state"`
	Stage       Stage    `json:"stage,omitempty"`
	Entries     int      `json:"entries"`
	Purged      int      `json:"purged"`
	Skipped     []string `json:"skipped,omitempty"`
	ArchiveSize int64    `json:"archive_size"`
}
