// Package lag consumes the encoder's submission-timestamp sidechannel and
// computes, for each sample, the delay between a frame being handed to the
// encoder and its sample being dequeued here. The sink and the fov
// decoder's output frames play no part in the measurement.
package lag

import (
	"context"
	"log/slog"
	"time"

	"github.com/foveastream/pipeline/internal/encoder"
	"github.com/foveastream/pipeline/internal/queue"
)

// Sample is one lag measurement: how long, in wall-clock time, elapsed
// between a frame's submission to the encoder and the Monitor dequeuing its
// LagSample.
type Sample struct {
	PTS int64
	Lag time.Duration
}

// Monitor drains an encoder.LagSample sidechannel and reports lag via
// Report as soon as each sample is dequeued; it does not wait for or match
// the corresponding frame at the sink.
type Monitor struct {
	In     *queue.Queue[*encoder.LagSample]
	Report func(Sample)
	Log    *slog.Logger
	// Now returns the current time in nanoseconds, on the same scale as
	// encoder.Stage.Clock. Defaults to time.Now().UnixNano, a wall-clock
	// reading rather than a monotonic one; overridable for deterministic
	// tests.
	Now func() int64
}

// Run drains In until the end-of-stream sentinel, reporting a Sample for
// every submission timestamp against the instant it is observed here
// (a stand-in for the sink's actual display time, since the sink is an
// out-of-scope collaborator).
func (m *Monitor) Run(ctx context.Context) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "lag.Monitor")
	now := m.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sample, ok := m.In.Dequeue()
		if !ok || sample == nil {
			return nil
		}
		lag := time.Duration(now() - sample.SubmittedAt)
		if m.Report != nil {
			m.Report(Sample{PTS: sample.PTS, Lag: lag})
		}
		log.Debug("lag sample", "pts", sample.PTS, "lag", lag)
	}
}
