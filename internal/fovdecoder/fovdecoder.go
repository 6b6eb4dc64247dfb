// Package fovdecoder is the pipeline's final decode stage: it decodes the
// encoder's foveated output back into raw frames for the sink.
package fovdecoder

import (
	"context"
	"log/slog"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/decodestage"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

// Run decodes In into Out using dec, exactly following decodestage's
// shared loop under the "foveation" stage name.
func Run(ctx context.Context, dec codec.Decoder, in *queue.Queue[*media.Packet], out *queue.Queue[*media.Frame], log *slog.Logger) error {
	return decodestage.Run(ctx, "foveation", dec, in, out, log)
}
