// Package nullcodec implements a passthrough codec.Decoder and codec.Encoder
// that hand submitted payloads straight back out, unchanged. It exists so
// pipeline wiring and stage logic can be tested without a real codec
// library, matching the "null backend" the original codec facade design
// calls for.
package nullcodec

import (
	"errors"

	"github.com/foveastream/pipeline/internal/codec"
	"github.com/foveastream/pipeline/internal/media"
)

var errClosed = errors.New("nullcodec: use after close")

// Decoder passes each submitted Packet through as a single-plane Frame
// wrapping the packet's compressed bytes, so pipeline plumbing can be
// exercised without decoding real bitstreams.
type Decoder struct {
	pending []*media.Frame
	eof     bool
	closed  bool
}

func NewDecoder() *Decoder { return &Decoder{} }

func (d *Decoder) SubmitPacket(p *media.Packet) (codec.Status, error) {
	if d.closed {
		return codec.StatusInvalid, errClosed
	}
	if p == nil {
		d.eof = true
		return codec.StatusOK, nil
	}
	d.pending = append(d.pending, &media.Frame{
		Width:  1,
		Height: 1,
		Planes: [][]byte{p.Data},
		PTS:    p.PTS,
	})
	return codec.StatusOK, nil
}

func (d *Decoder) ReceiveFrame() (*media.Frame, codec.Status, error) {
	if d.closed {
		return nil, codec.StatusInvalid, errClosed
	}
	if len(d.pending) == 0 {
		if d.eof {
			return nil, codec.StatusEndOfStream, nil
		}
		return nil, codec.StatusNeedInput, nil
	}
	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, codec.StatusOK, nil
}

func (d *Decoder) Close() error {
	d.closed = true
	return nil
}

// Encoder passes each submitted Frame through as a Packet wrapping the
// frame's first plane, ignoring foveation side data (the null backend does
// not model quality gradients).
type Encoder struct {
	codecID media.CodecID
	pending []*media.Packet
	eof     bool
	closed  bool
}

func NewEncoder(id media.CodecID) *Encoder { return &Encoder{codecID: id} }

func (e *Encoder) SubmitFrame(f *media.Frame) (codec.Status, error) {
	if e.closed {
		return codec.StatusInvalid, errClosed
	}
	if f == nil {
		e.eof = true
		return codec.StatusOK, nil
	}
	var data []byte
	if len(f.Planes) > 0 {
		data = f.Planes[0]
	}
	e.pending = append(e.pending, &media.Packet{
		Codec: e.codecID,
		Data:  data,
		PTS:   f.PTS,
		DTS:   f.PTS,
	})
	return codec.StatusOK, nil
}

func (e *Encoder) ReceivePacket() (*media.Packet, codec.Status, error) {
	if e.closed {
		return nil, codec.StatusInvalid, errClosed
	}
	if len(e.pending) == 0 {
		if e.eof {
			return nil, codec.StatusEndOfStream, nil
		}
		return nil, codec.StatusNeedInput, nil
	}
	p := e.pending[0]
	e.pending = e.pending[1:]
	return p, codec.StatusOK, nil
}

func (e *Encoder) Close() error {
	e.closed = true
	return nil
}
