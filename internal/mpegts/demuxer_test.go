package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// buildTSPacket constructs a 188-byte TS packet with the given fields.
func buildTSPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	return makePacket(pid, cc, pusi, payload)
}

// buildPATPayload creates a PAT payload with pointer field for embedding in TS.
func buildPATPayload(tsID uint16, programs []struct{ num, pid uint16 }) []byte {
	section := buildPAT(tsID, programs)
	payload := make([]byte, 1+len(section))
	payload[0] = 0x00 // pointer field
	copy(payload[1:], section)
	return payload
}

// buildPMTPayload creates a PMT payload with pointer field for embedding in TS.
func buildPMTPayload(programNum uint16, pcrPID uint16, streams []struct {
	streamType uint8
	pid        uint16
}) []byte {
	section := buildPMT(programNum, pcrPID, streams)
	payload := make([]byte, 1+len(section))
	payload[0] = 0x00
	copy(payload[1:], section)
	return payload
}

// buildPESPayload creates PES data for embedding in TS packets.
func buildPESPayload(streamID byte, pts int64, hasPTS bool, data []byte) []byte {
	return buildPESPacket(streamID, pts, 0, hasPTS, false, data)
}

func TestDemuxer_Synthetic(t *testing.T) {
	t.Parallel()
	// Build a synthetic TS stream: PAT -> PMT -> video PES.
	var stream bytes.Buffer

	patPayload := buildPATPayload(1, []struct{ num, pid uint16 }{{1, 0x1000}})
	stream.Write(buildTSPacket(0x0000, 0, true, patPayload))

	pmtPayload := buildPMTPayload(1, 0x100, []struct {
		streamType uint8
		pid        uint16
	}{
		{0x1B, 0x100}, // H.264 video
	})
	stream.Write(buildTSPacket(0x1000, 0, true, pmtPayload))

	videoData := []byte{0x00, 0x00, 0x00, 0x01, 0x65} // fake IDR NALU
	videoPES := buildPESPayload(0xE0, 90000, true, videoData)
	stream.Write(buildTSPacket(0x100, 0, true, videoPES))

	// Second PES to trigger flush of the first.
	videoPES2 := buildPESPayload(0xE0, 93754, true, videoData)
	stream.Write(buildTSPacket(0x100, 1, true, videoPES2))

	ctx := context.Background()
	dmx := NewDemuxer(ctx, &stream, DemuxerOptPacketSize(188))

	var gotPAT, gotPMT bool
	var videoPTS []int64

	for {
		data, err := dmx.NextData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}

		if data.PAT != nil {
			gotPAT = true
			if len(data.PAT.Programs) != 1 {
				t.Errorf("PAT programs = %d, want 1", len(data.PAT.Programs))
			}
		}
		if data.PMT != nil {
			gotPMT = true
			if len(data.PMT.ElementaryStreams) != 1 {
				t.Errorf("PMT streams = %d, want 1", len(data.PMT.ElementaryStreams))
			}
		}
		if data.PES != nil && data.PES.Header != nil && data.PES.Header.OptionalHeader != nil && data.PES.Header.OptionalHeader.PTS != nil {
			if data.FirstPacket.Header.PID == 0x100 {
				videoPTS = append(videoPTS, data.PES.Header.OptionalHeader.PTS.Base)
			}
		}
	}

	if !gotPAT {
		t.Error("did not receive PAT")
	}
	if !gotPMT {
		t.Error("did not receive PMT")
	}
	if len(videoPTS) < 1 {
		t.Error("did not receive any video PES")
	} else if videoPTS[0] != 90000 {
		t.Errorf("first video PTS = %d, want 90000", videoPTS[0])
	}
}

func TestDemuxer_PacketsParser(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer

	patPayload := buildPATPayload(1, []struct{ num, pid uint16 }{{1, 0x1000}})
	stream.Write(buildTSPacket(0x0000, 0, true, patPayload))

	pmtPayload := buildPMTPayload(1, 0x100, []struct {
		streamType uint8
		pid        uint16
	}{{0x1B, 0x100}})
	stream.Write(buildTSPacket(0x1000, 0, true, pmtPayload))

	// Custom PID a caller-supplied parser wants to intercept before the
	// standard PAT/PMT/PES parsing sees it.
	customData := []byte{0xAB, 0xCD, 0xEF}
	stream.Write(buildTSPacket(500, 0, true, customData))
	stream.Write(buildTSPacket(500, 1, true, customData)) // trigger flush

	parserCalled := false
	parser := func(ps []*Packet) ([]*DemuxerData, bool, error) {
		if ps[0].Header.PID == 500 {
			parserCalled = true
			return nil, true, nil // skip standard parsing
		}
		return nil, false, nil
	}

	ctx := context.Background()
	dmx := NewDemuxer(ctx, &stream, DemuxerOptPacketsParser(parser))

	for {
		_, err := dmx.NextData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if !parserCalled {
		t.Error("packets parser was not called")
	}
}

func TestDemuxer_EOF(t *testing.T) {
	t.Parallel()
	stream := bytes.NewReader([]byte{})
	ctx := context.Background()
	dmx := NewDemuxer(ctx, stream)

	_, err := dmx.NextData()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDemuxer_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dmx := NewDemuxer(ctx, bytes.NewReader(make([]byte, 1000)))

	_, err := dmx.NextData()
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDemuxer_CorruptPacketSkipped(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer

	patPayload := buildPATPayload(1, []struct{ num, pid uint16 }{{1, 0x1000}})
	stream.Write(buildTSPacket(0x0000, 0, true, patPayload))

	// Corrupt packet (bad sync byte).
	corrupt := make([]byte, 188)
	corrupt[0] = 0x00
	stream.Write(corrupt)

	// Good PAT again (cc=1).
	stream.Write(buildTSPacket(0x0000, 1, true, patPayload))

	ctx := context.Background()
	dmx := NewDemuxer(ctx, &stream)

	gotPAT := 0
	for {
		data, err := dmx.NextData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if data.PAT != nil {
			gotPAT++
		}
	}

	if gotPAT == 0 {
		t.Error("should have parsed at least one PAT despite corrupt packet")
	}
}
