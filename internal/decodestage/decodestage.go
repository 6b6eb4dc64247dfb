// Package decodestage implements the receive-then-feed decode loop shared
// by both the source decoder and the foveation decoder stages: submit
// packets until the decoder needs more, drain every frame it can produce,
// and repeat until end of stream. The original codec-facade design
// implements this loop once and reuses it for both decoder roles; this
// package is that single Go implementation.
package decodestage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// Run drains In, feeding each packet to dec and forwarding every frame it
// produces to Out, until In yields the end-of-stream sentinel and dec
// reports StatusEndOfStream. name identifies the stage in log output
// ("source" or "foveation").
func Run(ctx context.Context, name string, dec codec.Decoder, in *queue.Queue[*media.Packet], out *queue.Queue[*media.Frame], log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "decodestage", "stage", name)

	drainFrames := func() (endOfStream bool, err error) {
		for {
			frame, st, err := dec.ReceiveFrame()
			if err != nil {
				return false, fmt.Errorf("decodestage[%s]: receive: %w", name, err)
			}
			switch st {
			case codec.StatusOK:
				out.Enqueue(frame)
			case codec.StatusNeedInput:
				return false, nil
			case codec.StatusEndOfStream:
				return true, nil
			case codec.StatusInvalid, codec.StatusNoMemory:
				return false, fmt.Errorf("decodestage[%s]: receive: %s", name, st)
			default:
				log.Warn("unexpected decode status", "status", st.String())
				return false, nil
			}
		}
	}

	for {
		if ctx.Err() != nil {
			out.Enqueue(nil)
			return ctx.Err()
		}
		pkt, ok := in.Dequeue()
		if !ok || pkt == nil {
			if _, err := dec.SubmitPacket(nil); err != nil {
				out.Enqueue(nil)
				return fmt.Errorf("decodestage[%s]: submit eof: %w", name, err)
			}
			// No more input will ever arrive, so keep polling past
			// StatusNeedInput: an async backend (ffmpegcodec) may still be
			// flushing buffered frames when the first poll lands empty.
			for {
				eof, err := drainFrames()
				if err != nil {
					out.Enqueue(nil)
					return err
				}
				if eof {
					break
				}
				time.Sleep(time.Millisecond)
			}
			out.Enqueue(nil)
			return nil
		}

		st, err := dec.SubmitPacket(pkt)
		if err != nil {
			out.Enqueue(nil)
			return fmt.Errorf("decodestage[%s]: submit: %w", name, err)
		}
		if st == codec.StatusInvalid || st == codec.StatusNoMemory {
			log.Warn("decoder rejected packet", "status", st.String())
			continue
		}

		if eof, err := drainFrames(); err != nil {
			out.Enqueue(nil)
			return err
		} else if eof {
			out.Enqueue(nil)
			return nil
		}
	}
}
