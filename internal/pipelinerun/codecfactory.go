package pipelinerun

import (
	"context"
	"log/slog"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/codec/ffmpegcodec"
	"github.com/foveastream/pipeline/internal/codec/nullcodec"
	"github.com/foveastream/pipeline/internal/media"
)

// NullFactory builds passthrough codec.Decoder/Encoder backends, for tests
// and for exercising pipeline wiring without a real codec library.
type NullFactory struct{}

func (NullFactory) NewSourceDecoder(_ context.Context, _ media.CodecID, _, _ int) (codec.Decoder, error) {
	return nullcodec.NewDecoder(), nil
}

func (NullFactory) NewEncoder(_ context.Context, id media.CodecID, _, _ int) (codec.Encoder, error) {
	return nullcodec.NewEncoder(id), nil
}

func (NullFactory) NewFovDecoder(_ context.Context, _ media.CodecID, _, _ int) (codec.Decoder, error) {
	return nullcodec.NewDecoder(), nil
}

// FFmpegFactory builds ffmpeg-subprocess-backed codec backends, sized per
// run from the dimensions pipelinerun.Run recovers from the input's SPS.
type FFmpegFactory struct {
	Log *slog.Logger
}

func (f FFmpegFactory) NewSourceDecoder(ctx context.Context, id media.CodecID, width, height int) (codec.Decoder, error) {
	return ffmpegcodec.NewDecoder(ctx, id, width, height, f.Log)
}

func (f FFmpegFactory) NewEncoder(ctx context.Context, id media.CodecID, width, height int) (codec.Encoder, error) {
	return ffmpegcodec.NewEncoder(ctx, id, width, height, f.Log)
}

func (f FFmpegFactory) NewFovDecoder(ctx context.Context, id media.CodecID, width, height int) (codec.Decoder, error) {
	return ffmpegcodec.NewDecoder(ctx, id, width, height, f.Log)
}
