package ffmpegcodec

import (
	"bytes"
	"testing"
)

func TestSplitAnnexBSeparatesCompleteUnits(t *testing.T) {
	t.Parallel()
	nalA := []byte{0, 0, 1, 0x67, 0xAA, 0xBB}
	nalB := []byte{0, 0, 1, 0x41, 0xCC}
	partial := []byte{0, 0, 1, 0x41, 0xDD}

	buf := append(append(append([]byte{}, nalA...), nalB...), partial...)
	units, rest := splitAnnexB(buf)

	if len(units) != 2 {
		t.Fatalf("want 2 complete units, got %d", len(units))
	}
	if !bytes.Equal(units[0], nalA) || !bytes.Equal(units[1], nalB) {
		t.Fatalf("unit mismatch: got %x %x want %x %x", units[0], units[1], nalA, nalB)
	}
	if !bytes.Equal(rest, partial) {
		t.Fatalf("rest mismatch")
	}
}

func TestSplitAnnexBWithNoCompleteUnitReturnsAllAsRest(t *testing.T) {
	t.Parallel()
	buf := []byte{0, 0, 1, 0x67, 0xAA}
	units, rest := splitAnnexB(buf)
	if units != nil {
		t.Fatalf("want no units, got %d", len(units))
	}
	if !bytes.Equal(rest, buf) {
		t.Fatalf("want rest == buf")
	}
}

func TestLooksLikeKeyframeDetectsIDR(t *testing.T) {
	t.Parallel()
	idr := []byte{0, 0, 1, 0x65, 0x00}
	nonIDR := []byte{0, 0, 1, 0x41, 0x00}
	if !looksLikeKeyframe(idr) {
		t.Fatal("expected IDR to be detected as keyframe")
	}
	if looksLikeKeyframe(nonIDR) {
		t.Fatal("expected non-IDR to not be a keyframe")
	}
}
