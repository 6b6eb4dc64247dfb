package reader

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

var crcTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

func mpegCRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

func tsPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, 188)
	buf[0] = 0x47
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F)
	if pusi {
		buf[1] |= 0x40
	}
	copy(buf[4:], payload)
	return buf
}

func patSection(pmtPID uint16) []byte {
	const sectionLen = 13
	data := make([]byte, 3+sectionLen)
	data[0] = 0x00
	data[1] = 0xB0
	data[2] = sectionLen
	data[3], data[4] = 0x00, 0x01
	data[5] = 0xC1
	data[8], data[9] = 0x00, 0x01
	data[10] = 0xE0 | byte(pmtPID>>8)&0x1F
	data[11] = byte(pmtPID)
	binary.BigEndian.PutUint32(data[12:], mpegCRC32(data[:12]))
	return append([]byte{0x00}, data...)
}

func pmtSection(videoPID uint16, streamType byte) []byte {
	const sectionLen = 18
	data := make([]byte, 3+sectionLen)
	data[0] = 0x02
	data[1] = 0xB0
	data[2] = sectionLen
	data[3], data[4] = 0x00, 0x01
	data[5] = 0xC1
	data[8] = 0xE0 | byte(videoPID>>8)&0x1F
	data[9] = byte(videoPID)
	data[10] = 0xF0
	data[12] = streamType
	data[13] = 0xE0 | byte(videoPID>>8)&0x1F
	data[14] = byte(videoPID)
	data[15] = 0xF0
	binary.BigEndian.PutUint32(data[17:], mpegCRC32(data[:17]))
	return append([]byte{0x00}, data...)
}

func encodePTS(marker byte, value int64) []byte {
	bs := make([]byte, 5)
	bs[0] = marker<<4 | byte((value>>29)&0x0E) | 0x01
	bs[1] = byte(value >> 22)
	bs[2] = byte((value>>14)&0xFE) | 0x01
	bs[3] = byte(value >> 7)
	bs[4] = byte((value<<1)&0xFE) | 0x01
	return bs
}

func pesPacket(streamID byte, pts int64, data []byte) []byte {
	opt := encodePTS(0x02, pts)
	buf := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00, 0x80, 0x80, byte(len(opt))}
	buf = append(buf, opt...)
	return append(buf, data...)
}

func writeSyntheticTS(t *testing.T) string {
	t.Helper()
	idr := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAA, 0xBB}
	var out []byte
	out = append(out, tsPacket(0x0000, 0, true, patSection(0x1000))...)
	out = append(out, tsPacket(0x1000, 0, true, pmtSection(0x100, 0x1B))...)
	out = append(out, tsPacket(0x100, 0, true, pesPacket(0xE0, 90000, idr))...)
	out = append(out, tsPacket(0x100, 1, true, pesPacket(0xE0, 93000, idr))...)

	path := filepath.Join(t.TempDir(), "synthetic.ts")
	if err := os.WriteFile(path, out, 0o600); err != nil {
		t.Fatalf("write synthetic file: %v", err)
	}
	return path
}

func TestNewProbesCodecBeforeStreaming(t *testing.T) {
	t.Parallel()
	path := writeSyntheticTS(t)

	r, err := New(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Codec() != media.CodecH264 {
		t.Fatalf("want CodecH264, got %v", r.Codec())
	}
}

func TestRunEmitsPacketsThenSentinel(t *testing.T) {
	t.Parallel()
	path := writeSyntheticTS(t)

	r, err := New(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := queue.New[*media.Packet](8)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), out) }()

	var got []*media.Packet
	for {
		v, ok := out.Dequeue()
		if !ok {
			t.Fatal("queue closed before sentinel")
		}
		got = append(got, v)
		if v == nil {
			break
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("want at least one packet plus sentinel, got %d items", len(got))
	}
	if got[len(got)-1] != nil {
		t.Fatal("last item must be the nil sentinel")
	}
	if got[0].PTS != 90000 {
		t.Fatalf("want first PTS 90000, got %d", got[0].PTS)
	}
}

func TestNewRejectsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing.ts"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}
