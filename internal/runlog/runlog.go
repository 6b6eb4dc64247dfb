// Package runlog tracks the lifecycle of pipeline runs, one per input file
// processed by the CLI: creation, completion, and the outcome of each.
package runlog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome records how a run ended.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "running"
	}
}

// Run records one pipeline invocation against a single input path.
type Run struct {
	ID        uuid.UUID
	Path      string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Err       error
}

// Registry tracks every run started during a process's lifetime, mirroring
// the teacher's stream manager but keyed by a generated run ID instead of
// a caller-supplied stream key, since playlist entries carry no natural
// unique name.
type Registry struct {
	log  *slog.Logger
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewRegistry creates an empty Registry. If log is nil, slog.Default() is
// used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:  log.With("component", "runlog.Registry"),
		runs: make(map[uuid.UUID]*Run),
	}
}

// Start registers a new run for path and returns it.
func (r *Registry) Start(path string) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := &Run{ID: uuid.New(), Path: path, StartedAt: time.Now(), Outcome: OutcomeRunning}
	r.runs[run.ID] = run
	r.log.Info("run started", "run_id", run.ID, "path", path)
	return run
}

// Finish marks run as complete with the given error (nil on success).
func (r *Registry) Finish(run *Run, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run.EndedAt = time.Now()
	run.Err = err
	if err != nil {
		run.Outcome = OutcomeFailed
		r.log.Error("run failed", "run_id", run.ID, "path", run.Path, "error", err)
	} else {
		run.Outcome = OutcomeSucceeded
		r.log.Info("run succeeded", "run_id", run.ID, "path", run.Path, "duration", run.EndedAt.Sub(run.StartedAt))
	}
}

// List returns every run recorded so far.
func (r *Registry) List() []*Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	return runs
}
