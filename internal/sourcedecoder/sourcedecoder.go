// Package sourcedecoder is the pipeline's first decode stage: it turns the
// Reader's compressed access units into raw frames for the encoder.
package sourcedecoder

import (
	"context"
	"log/slog"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/decodestage"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// Run decodes In into Out using dec, exactly following decodestage's
// shared loop under the "source" stage name.
func Run(ctx context.Context, dec codec.Decoder, in *queue.Queue[*media.Packet], out *queue.Queue[*media.Frame], log *slog.Logger) error {
	return decodestage.Run(ctx, "source", dec, in, out, log)
}
