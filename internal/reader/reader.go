// Package reader implements the pipeline's Reader stage: it opens a file,
// selects the container's video stream, and pushes access units onto a
// bounded queue in decode order, closing with the end-of-stream sentinel.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/foveastream/pipeline/internal/container"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// DefaultWidth and DefaultHeight are used when Probe never recovers an SPS
// before the container runs out of data.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Reader has opened a file and probed its video stream. Codec and picture
// dimensions are known as soon as New returns, so the pipeline can
// construct a matching decoder before streaming starts.
type Reader struct {
	path          string
	file          *os.File
	prober        *container.Prober
	codec         media.CodecID
	width, height int
	log           *slog.Logger
}

// New opens path and probes it for a supported video stream. The caller
// must eventually call Close, or Run does so once streaming finishes.
func New(ctx context.Context, path string, log *slog.Logger) (*Reader, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "reader.Reader", "path", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reader: open %s: %w", path, err)
	}
	prober := container.NewProber(ctx, f, log)
	if err := prober.Probe(); err != nil {
		f.Close()
		return nil, fmt.Errorf("reader: probe %s: %w", path, err)
	}
	codec := prober.Codec()
	width, height := prober.Dimensions()
	if width == 0 || height == 0 {
		log.Warn("no SPS found while probing, falling back to default dimensions",
			"width", DefaultWidth, "height", DefaultHeight)
		width, height = DefaultWidth, DefaultHeight
	}
	log.Info("selected video stream", "codec", codec.String(), "width", width, "height", height)
	return &Reader{path: path, file: f, prober: prober, codec: codec, width: width, height: height, log: log}, nil
}

// Codec reports the selected video stream's codec.
func (r *Reader) Codec() media.CodecID { return r.codec }

// Width and Height report the picture dimensions recovered from the
// stream's SPS, or the package defaults if none was found.
func (r *Reader) Width() int  { return r.width }
func (r *Reader) Height() int { return r.height }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// Run streams access units into out until EOF or ctx cancellation, then
// enqueues the end-of-stream sentinel and closes the underlying file.
func (r *Reader) Run(ctx context.Context, out *queue.Queue[*media.Packet]) error {
	defer r.Close()
	count := 0
	for {
		if ctx.Err() != nil {
			out.Enqueue(nil)
			return ctx.Err()
		}
		pkt, err := r.prober.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			out.Enqueue(nil)
			return fmt.Errorf("reader: %s: %w", r.path, err)
		}
		out.Enqueue(pkt)
		count++
	}
	r.log.Debug("reached end of stream", "packets", count)
	out.Enqueue(nil)
	return nil
}
