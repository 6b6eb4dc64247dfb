// Package ffmpegcodec implements codec.Encoder and codec.Decoder by
// shelling out to the ffmpeg binary through github.com/u2takey/ffmpeg-go,
// the same wiring pattern the reference ffmpeg camera component uses:
// build an Input/Output graph, attach io.Pipe endpoints, and run the
// process in the background while a second goroutine drains its output.
package ffmpegcodec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/media"
)

func codecName(id media.CodecID) string {
	if id == media.CodecH265 {
		return "libx265"
	}
	return "libx264"
}

// aqModeString maps an AQMode to the x264/x265 aq-mode value. The two
// encoders number "autovariance" differently: x264 calls it mode 3, x265
// calls it mode 2.
func aqModeString(id media.CodecID, m codec.AQMode) string {
	switch m {
	case codec.AQAutoVariance:
		if id == media.CodecH265 {
			return "2"
		}
		return "3"
	case codec.AQVariance:
		return "1"
	default:
		return "0"
	}
}

// Encoder runs ffmpeg as a subprocess, feeding it raw planar frames on
// stdin and reading the compressed Annex-B bitstream back on stdout.
type Encoder struct {
	log     *slog.Logger
	codecID media.CodecID
	width   int
	height  int

	in  *io.PipeWriter
	out *io.PipeReader

	packets chan *media.Packet
	runErr  chan error

	mu     sync.Mutex
	closed bool
}

// NewEncoder launches ffmpeg configured with the low-latency option profile
// for id, expecting raw yuv420p frames of the given dimensions on stdin.
func NewEncoder(ctx context.Context, id media.CodecID, width, height int, log *slog.Logger) (*Encoder, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := codec.OptionsFor(id)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	e := &Encoder{
		log:     log.With("component", "ffmpegcodec.Encoder", "codec", id.String()),
		codecID: id,
		width:   width,
		height:  height,
		in:      inW,
		out:     outR,
		packets: make(chan *media.Packet, 4),
		runErr:  make(chan error, 1),
	}

	inputArgs := ffmpeg.KwArgs{
		"f":          "rawvideo",
		"pix_fmt":    "yuv420p",
		"video_size": fmt.Sprintf("%dx%d", width, height),
	}
	outputArgs := ffmpeg.KwArgs{
		"c:v":         codecName(id),
		"preset":      opts.Preset,
		"tune":        opts.Tune,
		"g":           opts.GOPSize,
		"f":           inputFormat(id), // raw Annex-B elementary stream, not a container
		"x264-params": "aq-mode=" + aqModeString(id, opts.AQMode),
	}
	if id == media.CodecH265 {
		delete(outputArgs, "x264-params")
		outputArgs["x265-params"] = "aq-mode=" + aqModeString(id, opts.AQMode)
	}

	stream := ffmpeg.Input("pipe:", inputArgs).
		Output("pipe:", outputArgs).
		WithInput(inR).
		WithOutput(outW)
	stream.Context = ctx

	go func() {
		err := stream.Run()
		outW.Close()
		e.runErr <- err
	}()

	go e.drainOutput()

	return e, nil
}

// SubmitFrame writes the frame's raw planes to ffmpeg's stdin. A nil frame
// closes stdin, signaling end of stream to the encoder.
func (e *Encoder) SubmitFrame(f *media.Frame) (codec.Status, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return codec.StatusInvalid, fmt.Errorf("ffmpegcodec: encoder closed")
	}
	if f == nil {
		return codec.StatusOK, e.in.Close()
	}
	for _, plane := range f.Planes {
		if _, err := e.in.Write(plane); err != nil {
			return codec.StatusInvalid, err
		}
	}
	return codec.StatusOK, nil
}

// ReceivePacket returns the next Annex-B NAL unit ffmpeg has produced.
func (e *Encoder) ReceivePacket() (*media.Packet, codec.Status, error) {
	select {
	case p, ok := <-e.packets:
		if !ok {
			select {
			case err := <-e.runErr:
				if err != nil {
					return nil, codec.StatusInvalid, err
				}
			default:
			}
			return nil, codec.StatusEndOfStream, nil
		}
		return p, codec.StatusOK, nil
	default:
		return nil, codec.StatusNeedInput, nil
	}
}

func (e *Encoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.in.Close()
	return e.out.Close()
}

// drainOutput reads ffmpeg's raw Annex-B stdout and splits it into
// NAL units on 00 00 01 / 00 00 00 01 start codes, pushing each as a
// media.Packet.
func (e *Encoder) drainOutput() {
	defer close(e.packets)
	buf := make([]byte, 0, 1<<20)
	chunk := make([]byte, 64*1024)
	for {
		n, err := e.out.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			units, rest := splitAnnexB(buf)
			for _, u := range units {
				e.packets <- &media.Packet{Codec: e.codecID, Data: u, KeyFrame: looksLikeKeyframe(u)}
			}
			buf = rest
		}
		if err != nil {
			if len(buf) > 0 {
				e.packets <- &media.Packet{Codec: e.codecID, Data: buf, KeyFrame: looksLikeKeyframe(buf)}
			}
			if err != io.EOF && err != io.ErrClosedPipe {
				e.log.Error("ffmpeg output read failed", "error", err)
			}
			return
		}
	}
}

var startCode3 = []byte{0, 0, 1}

// splitAnnexB splits buf into complete NAL units delimited by start codes
// (every unit followed by another start code), returning the units found
// and the unconsumed remainder starting at the last start code.
func splitAnnexB(buf []byte) (units [][]byte, rest []byte) {
	starts := []int{}
	for i := 0; i+3 <= len(buf); i++ {
		if bytes.Equal(buf[i:i+3], startCode3) {
			starts = append(starts, i)
		}
	}
	if len(starts) < 2 {
		return nil, buf
	}
	for i := 0; i < len(starts)-1; i++ {
		units = append(units, buf[starts[i]:starts[i+1]])
	}
	return units, buf[starts[len(starts)-1]:]
}

// Decoder runs ffmpeg as a subprocess, feeding it a compressed Annex-B
// bitstream on stdin and reading raw yuv420p frames back on stdout.
type Decoder struct {
	log    *slog.Logger
	width  int
	height int
	frameSize int

	in  *io.PipeWriter
	out *io.PipeReader

	frames chan *media.Frame
	runErr chan error

	mu     sync.Mutex
	closed bool
}

// NewDecoder launches ffmpeg to decode an Annex-B stream of the given
// codec into raw yuv420p frames of the given dimensions.
func NewDecoder(ctx context.Context, id media.CodecID, width, height int, log *slog.Logger) (*Decoder, error) {
	if log == nil {
		log = slog.Default()
	}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	d := &Decoder{
		log:       log.With("component", "ffmpegcodec.Decoder", "codec", id.String()),
		width:     width,
		height:    height,
		frameSize: width * height * 3 / 2, // yuv420p
		in:        inW,
		out:       outR,
		frames:    make(chan *media.Frame, 4),
		runErr:    make(chan error, 1),
	}

	inputArgs := ffmpeg.KwArgs{"f": inputFormat(id)}
	outputArgs := ffmpeg.KwArgs{"f": "rawvideo", "pix_fmt": "yuv420p"}

	stream := ffmpeg.Input("pipe:", inputArgs).
		Output("pipe:", outputArgs).
		WithInput(inR).
		WithOutput(outW)
	stream.Context = ctx

	go func() {
		err := stream.Run()
		outW.Close()
		d.runErr <- err
	}()

	go d.drainOutput()

	return d, nil
}

func inputFormat(id media.CodecID) string {
	if id == media.CodecH265 {
		return "hevc"
	}
	return "h264"
}

// SubmitPacket writes the packet's Annex-B bytes to ffmpeg's stdin. A nil
// packet closes stdin, signaling end of stream.
func (d *Decoder) SubmitPacket(p *media.Packet) (codec.Status, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return codec.StatusInvalid, fmt.Errorf("ffmpegcodec: decoder closed")
	}
	if p == nil {
		return codec.StatusOK, d.in.Close()
	}
	if _, err := d.in.Write(p.Data); err != nil {
		return codec.StatusInvalid, err
	}
	return codec.StatusOK, nil
}

// ReceiveFrame returns the next decoded frame, once ffmpeg has produced a
// full frameSize worth of pixel data.
func (d *Decoder) ReceiveFrame() (*media.Frame, codec.Status, error) {
	select {
	case f, ok := <-d.frames:
		if !ok {
			select {
			case err := <-d.runErr:
				if err != nil {
					return nil, codec.StatusInvalid, err
				}
			default:
			}
			return nil, codec.StatusEndOfStream, nil
		}
		return f, codec.StatusOK, nil
	default:
		return nil, codec.StatusNeedInput, nil
	}
}

func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	d.in.Close()
	return d.out.Close()
}

func (d *Decoder) drainOutput() {
	defer close(d.frames)
	buf := make([]byte, 0, d.frameSize*2)
	chunk := make([]byte, 64*1024)
	var pts int64
	for {
		n, err := d.out.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for len(buf) >= d.frameSize {
				raw := buf[:d.frameSize]
				buf = buf[d.frameSize:]
				ySize := d.width * d.height
				cSize := ySize / 4
				frame := &media.Frame{
					Width:  d.width,
					Height: d.height,
					Planes: [][]byte{
						append([]byte(nil), raw[:ySize]...),
						append([]byte(nil), raw[ySize:ySize+cSize]...),
						append([]byte(nil), raw[ySize+cSize:ySize+2*cSize]...),
					},
					PTS: pts,
				}
				pts++
				d.frames <- frame
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				d.log.Error("ffmpeg output read failed", "error", err)
			}
			return
		}
	}
}

func looksLikeKeyframe(nal []byte) bool {
	// Annex-B: skip the start code, inspect the NAL header byte. This is a
	// coarse heuristic sufficient for pipeline bookkeeping, not a full
	// slice-type parse.
	i := 0
	for i < len(nal) && nal[i] == 0 {
		i++
	}
	if i < len(nal) && nal[i] == 1 {
		i++
	}
	if i >= len(nal) {
		return false
	}
	h264Type := nal[i] & 0x1F
	return h264Type == 5 // IDR
}
