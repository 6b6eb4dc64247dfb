// Package gaze provides the foveation-descriptor capability the encoder
// stage consumes: a Provider yields where on the frame the viewer's gaze is
// concentrated, so the encoder can bias quality there. The windowing
// subsystem that would drive a live pointer or eye tracker is out of scope;
// this package only defines the injectable seam.
package gaze

import (
	"context"

	"github.com/foveastream/pipeline/internal/media"
)

// Provider yields a FoveationDescriptor for the frame about to be encoded.
type Provider interface {
	Descriptor(ctx context.Context) (media.FoveationDescriptor, error)
}

// PointerSource reports the current pointer position and the frame
// dimensions it is measured against. A real windowing toolkit implements
// this; none of the reference examples embed one, so PointerFallback works
// against whatever PointerSource it is given.
type PointerSource interface {
	Position() (x, y int)
	Size() (w, h int)
}

// PointerFallback derives a FoveationDescriptor from a PointerSource's
// normalized position, with a fixed falloff and offset. It is the default
// Provider when no eye tracker is configured.
type PointerFallback struct {
	Source PointerSource
	Sigma  float32
	Offset float32
}

// NewPointerFallback returns a PointerFallback with the source's position
// normalized against its reported frame size, using the fixed falloff
// (Sigma 0.3, Offset 20) the original encoder uses for its pointer-driven
// default.
func NewPointerFallback(src PointerSource) *PointerFallback {
	return &PointerFallback{Source: src, Sigma: 0.3, Offset: 20}
}

// Descriptor implements Provider. If the source reports a zero-sized frame
// it falls back to the frame center, keeping fx/fy within [0,1].
func (p *PointerFallback) Descriptor(_ context.Context) (media.FoveationDescriptor, error) {
	x, y := p.Source.Position()
	w, h := p.Source.Size()
	fx, fy := float32(0.5), float32(0.5)
	if w > 0 {
		fx = clamp01(float32(x) / float32(w))
	}
	if h > 0 {
		fy = clamp01(float32(y) / float32(h))
	}
	return media.FoveationDescriptor{Fx: fx, Fy: fy, Sigma: p.Sigma, Offset: p.Offset}, nil
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// CenterPointerSource is a PointerSource that always reports the center of
// a fixed-size frame. It is the default injected into PointerFallback when
// no real windowing subsystem is wired up.
type CenterPointerSource struct {
	W, H int
}

func (c CenterPointerSource) Position() (x, y int) { return c.W / 2, c.H / 2 }
func (c CenterPointerSource) Size() (w, h int)     { return c.W, c.H }

// ExternalTracker is a Provider driven by live samples pushed through Feed,
// falling back to a fixed configured descriptor until the first sample
// arrives. This resolves the incomplete eye-tracker assignment in the
// original gaze-update routine by giving it a concrete, complete
// implementation rather than leaving the branch half-written.
type ExternalTracker struct {
	mu      chan media.FoveationDescriptor // 1-buffered mailbox, always holds latest sample
	initial media.FoveationDescriptor
}

// NewExternalTracker returns an ExternalTracker that reports fallback until
// Feed is called at least once.
func NewExternalTracker(fallback media.FoveationDescriptor) *ExternalTracker {
	t := &ExternalTracker{mu: make(chan media.FoveationDescriptor, 1), initial: fallback}
	t.mu <- fallback
	return t
}

// Feed pushes a new live gaze sample, replacing whatever the last Descriptor
// call would have returned.
func (t *ExternalTracker) Feed(d media.FoveationDescriptor) {
	select {
	case <-t.mu:
	default:
	}
	t.mu <- d
}

// Descriptor implements Provider, returning the most recent sample fed via
// Feed, or the configured fallback if none has arrived yet.
func (t *ExternalTracker) Descriptor(ctx context.Context) (media.FoveationDescriptor, error) {
	select {
	case d := <-t.mu:
		t.mu <- d
		return d, nil
	case <-ctx.Done():
		return media.FoveationDescriptor{}, ctx.Err()
	}
}
