// Package codec defines the decoder/encoder facade contract that decouples
// the pipeline stages from any concrete codec library, plus the per-codec
// option profile used by the encoder. Concrete backends live in
// subpackages: nullcodec for tests, ffmpegcodec for production use.
package codec

import (
	"github.com/foveastream/pipeline/internal/media"
)

// Status is the result of a submit/receive call on a Decoder or Encoder,
// mirroring the codec facade's five-way outcome instead of a bare error.
type Status int

const (
	StatusOK Status = iota
	// StatusNeedInput means the caller must submit more input before a
	// receive call can produce output.
	StatusNeedInput
	// StatusEndOfStream means the codec has flushed everything it will
	// ever produce; no further receive calls will succeed.
	StatusEndOfStream
	// StatusInvalid means the submitted payload was rejected by the codec.
	StatusInvalid
	// StatusNoMemory means the backend could not allocate resources for
	// this call; the caller may retry.
	StatusNoMemory
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNeedInput:
		return "need_input"
	case StatusEndOfStream:
		return "end_of_stream"
	case StatusInvalid:
		return "invalid"
	case StatusNoMemory:
		return "no_memory"
	default:
		return "unknown"
	}
}

// Decoder converts compressed Packets into decoded Frames. A nil Packet
// submitted to SubmitPacket signals end of stream; ReceiveFrame then drains
// remaining buffered frames before returning StatusEndOfStream.
type Decoder interface {
	SubmitPacket(p *media.Packet) (Status, error)
	ReceiveFrame() (*media.Frame, Status, error)
	Close() error
}

// Encoder converts decoded Frames, annotated with a foveation descriptor,
// into compressed Packets. A nil Frame submitted to SubmitFrame signals end
// of stream.
type Encoder interface {
	SubmitFrame(f *media.Frame) (Status, error)
	ReceivePacket() (*media.Packet, Status, error)
	Close() error
}

// AQMode selects the encoder's adaptive-quantization strategy.
type AQMode int

const (
	AQNone AQMode = iota
	AQVariance
	AQAutoVariance
)

// Options is the per-codec tuning profile the encoder applies before
// submitting frames, mirroring the original's fixed low-latency preset
// table.
type Options struct {
	Preset  string
	Tune    string
	AQMode  AQMode
	GOPSize int
}

// OptionsFor returns the low-latency encode profile for id. H.264 and
// H.265 share the same fixed low-latency preset table.
func OptionsFor(id media.CodecID) Options {
	switch id {
	case media.CodecH265:
		return Options{Preset: "ultrafast", Tune: "zerolatency", AQMode: AQAutoVariance, GOPSize: 3}
	default:
		return Options{Preset: "ultrafast", Tune: "zerolatency", AQMode: AQAutoVariance, GOPSize: 3}
	}
}
