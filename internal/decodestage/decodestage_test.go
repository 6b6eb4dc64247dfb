package decodestage

import (
	"context"
	"testing"

	"github.com/foveastream/pipeline/internal/codec/nullcodec"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/queue"
)

func TestRunForwardsFramesThenSentinel(t *testing.T) {
	t.Parallel()
	in := queue.New[*media.Packet](4)
	out := queue.New[*media.Frame](4)
	dec := nullcodec.NewDecoder()

	go func() {
		in.Enqueue(&media.Packet{Data: []byte("a"), PTS: 1})
		in.Enqueue(&media.Packet{Data: []byte("b"), PTS: 2})
		in.Enqueue(nil)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- Run(context.Background(), "source", dec, in, out, nil) }()

	var got []*media.Frame
	for {
		f, ok := out.Dequeue()
		if !ok {
			t.Fatal("out queue closed before sentinel")
		}
		got = append(got, f)
		if f == nil {
			break
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 3 || got[2] != nil {
		t.Fatalf("want 2 frames + sentinel, got %d items", len(got))
	}
	if got[0].PTS != 1 || got[1].PTS != 2 {
		t.Fatalf("frames out of order: %+v %+v", got[0], got[1])
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	in := queue.New[*media.Packet](1)
	out := queue.New[*media.Frame](1)
	dec := nullcodec.NewDecoder()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, "source", dec, in, out, nil)
	if err == nil {
		t.Fatal("expected context error")
	}
	if _, ok := out.Dequeue(); !ok {
		t.Fatal("expected sentinel on cancellation")
	}
}
