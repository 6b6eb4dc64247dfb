// Package container implements the file-reading half of the pipeline's
// Reader stage: it opens an MPEG-TS file, parses PAT/PMT to find the
// program's video elementary stream, and reassembles Annex-B access units
// with presentation timestamps into media.Packets, discarding every other
// PID (audio, SCTE-35, private data) as the ingest stage requires.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/foveastream/pipeline/internal/demux"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/mpegts"
)

const (
	streamTypeH264 = 0x1B
	streamTypeH265 = 0x24
)

// ErrNoVideoStream is returned by Prober.Probe when the PMT contains no
// H.264 or H.265 elementary stream.
var ErrNoVideoStream = errors.New("container: no H.264/H.265 video stream in program")

// Prober demuxes a single video elementary stream out of an MPEG-TS file,
// selecting the first video PID it finds in the PMT and ignoring the rest.
// Probe also parses the stream's first SPS to recover the picture
// dimensions, buffering any access units it consumes along the way so Next
// still returns every one of them in order.
type Prober struct {
	log *slog.Logger
	d   *mpegts.Demuxer

	videoPID uint16
	codec    media.CodecID
	width    int
	height   int

	pending []*media.Packet
}

// NewProber wraps r as an MPEG-TS source. Probe must be called before Next
// to select the video stream.
func NewProber(ctx context.Context, r io.Reader, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{
		log: log.With("component", "container.Prober"),
		d:   mpegts.NewDemuxer(ctx, r),
	}
}

// Probe reads PAT/PMT units to find the program's video elementary stream,
// then keeps reading video access units until it recovers picture
// dimensions from the stream's SPS or the container runs out of data.
// Every access unit consumed along the way is buffered for Next to return.
// Returns ErrNoVideoStream if the container has no H.264/H.265 stream.
func (p *Prober) Probe() error {
	for {
		data, err := p.d.NextData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if p.videoPID == 0 {
					return ErrNoVideoStream
				}
				p.log.Warn("reached end of stream before finding an SPS; dimensions unknown")
				return nil
			}
			return fmt.Errorf("container: probe: %w", err)
		}

		if data.PMT != nil {
			for _, es := range data.PMT.ElementaryStreams {
				switch es.StreamType {
				case streamTypeH264:
					if p.videoPID == 0 {
						p.videoPID = es.ElementaryPID
						p.codec = media.CodecH264
					}
				case streamTypeH265:
					if p.videoPID == 0 {
						p.videoPID = es.ElementaryPID
						p.codec = media.CodecH265
					}
				}
			}
			if p.videoPID == 0 {
				return ErrNoVideoStream
			}
			continue
		}

		if p.videoPID == 0 || data.PES == nil || data.FirstPacket == nil || data.FirstPacket.Header.PID != p.videoPID {
			continue
		}

		pkt, err := p.buildPacket(data.PES)
		if err != nil {
			p.log.Warn("dropping malformed access unit while probing", "error", err)
			continue
		}
		if pkt == nil {
			continue
		}
		p.pending = append(p.pending, pkt)
		if p.width > 0 && p.height > 0 {
			p.log.Debug("selected video stream", "pid", p.videoPID, "codec", p.codec.String(),
				"width", p.width, "height", p.height)
			return nil
		}
	}
}

// Codec reports the codec of the selected video stream. Valid only after a
// successful Probe.
func (p *Prober) Codec() media.CodecID { return p.codec }

// Dimensions reports the picture size recovered from the stream's SPS.
// Both values are zero if Probe never found one.
func (p *Prober) Dimensions() (width, height int) { return p.width, p.height }

// Next returns the next video access unit as a media.Packet, or io.EOF once
// the stream is exhausted. Every non-video PID is silently discarded.
func (p *Prober) Next() (*media.Packet, error) {
	if len(p.pending) > 0 {
		pkt := p.pending[0]
		p.pending = p.pending[1:]
		return pkt, nil
	}
	for {
		data, err := p.d.NextData()
		if err != nil {
			return nil, err
		}
		if data.PES == nil || data.FirstPacket == nil || data.FirstPacket.Header.PID != p.videoPID {
			continue
		}
		pkt, err := p.buildPacket(data.PES)
		if err != nil {
			p.log.Warn("dropping malformed access unit", "error", err)
			continue
		}
		if pkt == nil {
			continue
		}
		return pkt, nil
	}
}

func (p *Prober) buildPacket(pes *mpegts.PESData) (*media.Packet, error) {
	var units []demux.NALUnit
	switch p.codec {
	case media.CodecH264:
		units = demux.ParseAnnexB(pes.Data)
	case media.CodecH265:
		units = demux.ParseAnnexBHEVC(pes.Data)
	default:
		return nil, fmt.Errorf("container: no codec selected")
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("container: PES payload contained no NAL units")
	}

	keyframe := false
	var payload []byte
	for _, u := range units {
		switch p.codec {
		case media.CodecH264:
			if demux.IsKeyframe(u.Type) {
				keyframe = true
			}
			if p.width == 0 && demux.IsSPS(u.Type) {
				if info, err := demux.ParseSPS(u.Data); err == nil && info.Width > 0 && info.Height > 0 {
					p.width, p.height = info.Width, info.Height
				}
			}
		case media.CodecH265:
			if demux.IsHEVCKeyframe(u.Type) {
				keyframe = true
			}
			if p.width == 0 && demux.IsHEVCSPS(u.Type) {
				if info, err := demux.ParseHEVCSPS(u.Data); err == nil && info.Width > 0 && info.Height > 0 {
					p.width, p.height = info.Width, info.Height
				}
			}
		}
		payload = append(payload, 0, 0, 0, 1)
		payload = append(payload, u.Data...)
	}

	var pts, dts int64
	if pes.Header != nil && pes.Header.OptionalHeader != nil {
		if pes.Header.OptionalHeader.PTS != nil {
			pts = pes.Header.OptionalHeader.PTS.Base
		}
		if pes.Header.OptionalHeader.DTS != nil {
			dts = pes.Header.OptionalHeader.DTS.Base
		} else {
			dts = pts
		}
	}

	return &media.Packet{Codec: p.codec, Data: payload, PTS: pts, DTS: dts, KeyFrame: keyframe}, nil
}
