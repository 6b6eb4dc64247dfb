// Package media defines the payload types that flow through the pipeline's
// bounded queues: compressed Packets from the container, decoded Frames
// between codec stages, and the FoveationDescriptor side-data attached to a
// Frame before it is submitted to the encoder.
package media

import (
	"encoding/binary"
	"math"
)

// CodecID identifies a compressed video codec.
type CodecID int

const (
	CodecUnknown CodecID = iota
	CodecH264
	CodecH265
)

func (c CodecID) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	default:
		return "unknown"
	}
}

// SideDataTag names a side-data slot attached to a Frame.
type SideDataTag int

const (
	// SideDataFoveationDescriptor tags the 16-byte marshaled
	// FoveationDescriptor that the encoder stage attaches, from the gaze
	// provider's output, before the frame is submitted to the encoder.
	SideDataFoveationDescriptor SideDataTag = iota
)

// Packet is a compressed access unit as produced by the container reader and
// consumed by a decoder. A nil *Packet enqueued on a queue.Queue[*Packet] is
// the end-of-stream sentinel.
type Packet struct {
	Codec    CodecID
	Data     []byte
	PTS      int64
	DTS      int64
	KeyFrame bool
}

// Frame is a decoded picture as produced by a decoder and consumed by an
// encoder, or produced by the foveation decoder for the sink. A nil *Frame
// enqueued on a queue.Queue[*Frame] is the end-of-stream sentinel.
type Frame struct {
	Width, Height int
	// Planes holds raw pixel planes in decode-native layout (e.g. Y/U/V for
	// 4:2:0). The pipeline treats plane contents opaquely; only the codec
	// backend interprets them.
	Planes [][]byte
	PTS    int64
	// SideData carries out-of-band annotations, keyed by tag. The encoder
	// stage sets SideDataFoveationDescriptor here before submission.
	SideData map[SideDataTag][]byte
}

// SetSideData attaches raw side data under tag, allocating the map if needed.
func (f *Frame) SetSideData(tag SideDataTag, data []byte) {
	if f.SideData == nil {
		f.SideData = make(map[SideDataTag][]byte)
	}
	f.SideData[tag] = data
}

// FoveationDescriptor is the 4-tuple gaze annotation attached to a frame
// before encoding: normalized gaze center (Fx, Fy) in [0,1], the fovea
// falloff Sigma, and an Offset bias applied by the encoder's quality
// gradient.
type FoveationDescriptor struct {
	Fx, Fy, Sigma, Offset float32
}

// Marshal encodes the descriptor as four little-endian float32s, the wire
// format required for the FOVEATION_DESCRIPTOR side-data tag.
func (d FoveationDescriptor) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(d.Fx))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(d.Fy))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(d.Sigma))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(d.Offset))
	return buf
}

// UnmarshalFoveationDescriptor decodes the 16-byte wire format produced by
// Marshal.
func UnmarshalFoveationDescriptor(buf []byte) (FoveationDescriptor, bool) {
	if len(buf) != 16 {
		return FoveationDescriptor{}, false
	}
	return FoveationDescriptor{
		Fx:     math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		Fy:     math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		Sigma:  math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
		Offset: math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
	}, true
}
