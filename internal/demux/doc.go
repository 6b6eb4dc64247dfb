// Package demux implements Annex-B NAL unit parsing for H.264 and H.265
// video: start-code scanning, SPS decoding for picture dimensions, and the
// NAL type predicates the container package uses to find keyframes and
// locate the SPS.
//
// The transport-stream framing itself lives in [internal/mpegts]; demux
// only understands the codec bitstream once PES payloads have been
// reassembled.
package demux
