// Package encoder implements the pipeline's Encoder stage: it attaches a
// foveation descriptor to each decoded frame, submits it to the codec, and
// forwards the resulting compressed packets, while also publishing the
// frame's submission timestamp on the lag sidechannel.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/gaze"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// LagSample pairs a frame's presentation timestamp with the time it was
// submitted to the encoder, as reported by Stage.Clock, letting
// internal/lag compute how long the sample took to reach it.
type LagSample struct {
	PTS         int64
	SubmittedAt int64 // nanoseconds from Clock; UnixNano by default
}

// Stage runs the Encoder algorithm: receive-then-feed with a foveation
// annotation step before submission.
type Stage struct {
	Enc      codec.Encoder
	Provider gaze.Provider
	In       *queue.Queue[*media.Frame]
	Out      *queue.Queue[*media.Packet]
	LagOut   *queue.Queue[*LagSample]
	Log      *slog.Logger
	// Clock returns the current time in nanoseconds. Defaults to
	// time.Now().UnixNano if nil, a wall-clock reading rather than a
	// monotonic one; overridable for deterministic tests.
	Clock func() int64
}

func defaultClock() int64 { return time.Now().UnixNano() }

// Run drains In, annotating each frame with a foveation descriptor from
// Provider before submitting it to Enc, forwards every packet Enc produces
// to Out, and reports each frame's submission time on LagOut.
func (s *Stage) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "encoder.Stage")
	clock := s.Clock
	if clock == nil {
		clock = defaultClock
	}

	drainPackets := func() (endOfStream bool, err error) {
		for {
			pkt, st, err := s.Enc.ReceivePacket()
			if err != nil {
				return false, fmt.Errorf("encoder: receive: %w", err)
			}
			switch st {
			case codec.StatusOK:
				s.Out.Enqueue(pkt)
			case codec.StatusNeedInput:
				return false, nil
			case codec.StatusEndOfStream:
				return true, nil
			case codec.StatusInvalid, codec.StatusNoMemory:
				return false, fmt.Errorf("encoder: receive: %s", st)
			default:
				log.Warn("unexpected encode status", "status", st.String())
				return false, nil
			}
		}
	}

	for {
		if ctx.Err() != nil {
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return ctx.Err()
		}
		frame, ok := s.In.Dequeue()
		if !ok || frame == nil {
			if _, err := s.Enc.SubmitFrame(nil); err != nil {
				s.Out.Enqueue(nil)
				if s.LagOut != nil {
					s.LagOut.Enqueue(nil)
				}
				return fmt.Errorf("encoder: submit eof: %w", err)
			}
			// No more input will ever arrive, so keep polling past
			// StatusNeedInput: an async backend (ffmpegcodec) may still be
			// flushing buffered packets when the first poll lands empty.
			for {
				eof, err := drainPackets()
				if err != nil {
					s.Out.Enqueue(nil)
					if s.LagOut != nil {
						s.LagOut.Enqueue(nil)
					}
					return err
				}
				if eof {
					break
				}
				time.Sleep(time.Millisecond)
			}
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return nil
		}

		desc, err := s.Provider.Descriptor(ctx)
		if err != nil {
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return fmt.Errorf("encoder: gaze descriptor: %w", err)
		}
		frame.SetSideData(media.SideDataFoveationDescriptor, desc.Marshal())

		submittedAt := clock()
		st, err := s.Enc.SubmitFrame(frame)
		if err != nil {
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return fmt.Errorf("encoder: submit: %w", err)
		}
		if st == codec.StatusInvalid || st == codec.StatusNoMemory {
			log.Warn("encoder rejected frame", "status", st.String())
			continue
		}
		if s.LagOut != nil {
			s.LagOut.Enqueue(&LagSample{PTS: frame.PTS, SubmittedAt: submittedAt})
		}

		if eof, err := drainPackets(); err != nil {
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return err
		} else if eof {
			s.Out.Enqueue(nil)
			if s.LagOut != nil {
				s.LagOut.Enqueue(nil)
			}
			return nil
		}
	}
}
