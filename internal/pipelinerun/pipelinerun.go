// Package pipelinerun wires the Reader, source decoder, encoder, and
// foveation decoder stages, plus the sink and the lag monitor, for a single
// input file through bounded queues, running each of the six on its own
// goroutine under golang.org/x/sync/errgroup so that any stage's failure
// cancels the rest.
package pipelinerun

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/encoder"
	"github.com/foveastream/pipeline/internal/fovdecoder"
	"github.com/foveastream/pipeline/internal/gaze"
	"github.com/foveastream/pipeline/internal/lag"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
	"github.com/foveastream/pipeline/internal/reader"
	"github.com/foveastream/pipeline/internal/sink"
	"github.com/foveastream/pipeline/internal/sourcedecoder"
)

// Queue capacities. The input-side queues are generously sized so a burst
// from the reader or source decoder does not stall on a slow downstream
// stage; the queues after the encoder (encoded packets, output frames, and
// lag samples) are capacity 1, forcing the encoder and foveation decoder to
// run in lockstep with the sink the way a real-time display pipeline must.
const (
	PacketQueueCapacity  = 32
	FrameQueueCapacity   = 32
	EncodedQueueCapacity = 1
	OutputQueueCapacity  = 1
	LagQueueCapacity     = 1
)

// CodecFactory builds the decoder/encoder backends for one run, given the
// picture dimensions the Reader recovered from the input's SPS. Tests use
// nullcodec, which ignores width/height; production wiring uses ffmpegcodec.
type CodecFactory interface {
	NewSourceDecoder(ctx context.Context, id media.CodecID, width, height int) (codec.Decoder, error)
	NewEncoder(ctx context.Context, id media.CodecID, width, height int) (codec.Encoder, error)
	NewFovDecoder(ctx context.Context, id media.CodecID, width, height int) (codec.Decoder, error)
}

// Config parameterizes a single run.
type Config struct {
	Path     string
	Codecs   CodecFactory
	Provider gaze.Provider
	Sink     sink.Sink
	Log      *slog.Logger
	// EncodeCodec selects the codec the encoder stage re-encodes into and
	// the foveation decoder decodes. The source decoder always uses the
	// codec probed from the input container; EncodeCodec is independent of
	// that and defaults to the probed codec when left as media.CodecUnknown.
	EncodeCodec media.CodecID
	// PacketQueueCapacity and FrameQueueCapacity override the capacity of
	// the reader->source-decoder and source-decoder->encoder queues. Zero
	// keeps the package defaults. The encoder/foveation-decoder/sink
	// queues stay fixed at capacity 1 regardless, since those stages must
	// run in lockstep for the lag measurement to mean anything.
	PacketQueueCapacity int
	FrameQueueCapacity  int
	// OnLagSample, if set, receives every lag.Sample computed during the
	// run.
	OnLagSample func(lag.Sample)
}

// Run executes the full pipeline against a single file and blocks until it
// completes or ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pipelinerun.Run", "path", cfg.Path)

	rd, err := reader.New(ctx, cfg.Path, log)
	if err != nil {
		return err
	}
	inputCodec := rd.Codec()
	width, height := rd.Width(), rd.Height()
	encodeCodec := cfg.EncodeCodec
	if encodeCodec == media.CodecUnknown {
		encodeCodec = inputCodec
	}

	srcDec, err := cfg.Codecs.NewSourceDecoder(ctx, inputCodec, width, height)
	if err != nil {
		return fmt.Errorf("pipelinerun: source decoder: %w", err)
	}
	enc, err := cfg.Codecs.NewEncoder(ctx, encodeCodec, width, height)
	if err != nil {
		return fmt.Errorf("pipelinerun: encoder: %w", err)
	}
	fovDec, err := cfg.Codecs.NewFovDecoder(ctx, encodeCodec, width, height)
	if err != nil {
		return fmt.Errorf("pipelinerun: foveation decoder: %w", err)
	}
	defer srcDec.Close()
	defer enc.Close()
	defer fovDec.Close()

	pktCap := cfg.PacketQueueCapacity
	if pktCap <= 0 {
		pktCap = PacketQueueCapacity
	}
	frameCap := cfg.FrameQueueCapacity
	if frameCap <= 0 {
		frameCap = FrameQueueCapacity
	}

	pktQueue := queue.New[*media.Packet](pktCap)
	frameQueue := queue.New[*media.Frame](frameCap)
	encPktQueue := queue.New[*media.Packet](EncodedQueueCapacity)
	outFrameQueue := queue.New[*media.Frame](OutputQueueCapacity)
	lagQueue := queue.New[*encoder.LagSample](LagQueueCapacity)

	sinkImpl := cfg.Sink
	if sinkImpl == nil {
		sinkImpl = sink.Discard{}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rd.Run(ctx, pktQueue)
	})
	g.Go(func() error {
		return sourcedecoder.Run(ctx, srcDec, pktQueue, frameQueue, log)
	})
	g.Go(func() error {
		stage := &encoder.Stage{
			Enc:      enc,
			Provider: cfg.Provider,
			In:       frameQueue,
			Out:      encPktQueue,
			LagOut:   lagQueue,
			Log:      log,
		}
		return stage.Run(ctx)
	})
	g.Go(func() error {
		return fovdecoder.Run(ctx, fovDec, encPktQueue, outFrameQueue, log)
	})
	g.Go(func() error {
		return sink.Run(ctx, sinkImpl, outFrameQueue, log)
	})
	g.Go(func() error {
		monitor := &lag.Monitor{In: lagQueue, Report: cfg.OnLagSample, Log: log}
		return monitor.Run(ctx)
	})

	return g.Wait()
}
