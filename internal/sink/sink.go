// Package sink defines the display-ready frame consumer at the end of the
// pipeline. The actual display/output surface is an external collaborator
// out of scope for this module; this package provides the interface the
// fov decoder writes to, plus Discard, which the CLI uses, and Collector,
// an in-memory implementation used by tests.
package sink

import (
	"context"
	"log/slog"

	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// Sink receives fully decoded, foveation-processed frames in presentation
// order.
type Sink interface {
	Write(f *media.Frame) error
}

// Discard is a Sink that drops every frame; useful when only throughput or
// lag is being measured.
type Discard struct{}

func (Discard) Write(*media.Frame) error { return nil }

// Collector is a Sink that appends every frame to Frames, for tests that
// need to assert on final pipeline output.
type Collector struct {
	Frames []*media.Frame
}

func (c *Collector) Write(f *media.Frame) error {
	c.Frames = append(c.Frames, f)
	return nil
}

// Run drains In and writes every frame to s until the end-of-stream
// sentinel or ctx cancellation.
func Run(ctx context.Context, s Sink, in *queue.Queue[*media.Frame], log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sink.Run")
	count := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f, ok := in.Dequeue()
		if !ok || f == nil {
			log.Debug("sink drained", "frames", count)
			return nil
		}
		if err := s.Write(f); err != nil {
			return err
		}
		count++
	}
}
