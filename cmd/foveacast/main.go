// Command foveacast runs the foveated re-encode pipeline over every entry
// of a playlist file, one input at a time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/akamensky/argparse"

	"github.com/foveastream/pipeline/internal/config"
	"github.com/foveastream/pipeline/internal/gaze"
	"github.com/foveastream/pipeline/internal/lag"
	"github.com/foveastream/pipeline/internal/media"
	"github.com/foveastream/pipeline/internal/pipelinerun"
	"github.com/foveastream/pipeline/internal/runlog"
	"github.com/foveastream/pipeline/internal/sink"
)

func main() {
	level := slog.LevelInfo
	if config.EnvBool("DEBUG") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	parser := argparse.NewParser("foveacast", "foveated re-encode pipeline runner")
	playlistPath := parser.StringPositional(&argparse.Options{Required: true, Help: "path to a playlist file, one input per line"})
	codecFlag := parser.Selector("", "codec", []string{"h264", "h265"}, &argparse.Options{
		Required: false, Default: "h264", Help: "codec used for the re-encode stage",
	})
	queueCapacity := parser.String("", "queue-capacity", &argparse.Options{
		Required: false, Default: "32", Help: "packet/frame queue capacity for the decode stages",
	})
	useExternalTracker := parser.Flag("", "et", &argparse.Options{
		Required: false, Help: "use an externally-fed gaze tracker instead of a fixed center point",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, parser.Usage(err))
		os.Exit(2)
	}

	queueCap, err := strconv.Atoi(*queueCapacity)
	if err != nil || queueCap <= 0 {
		fmt.Fprintf(os.Stderr, "invalid --queue-capacity %q: must be a positive integer\n", *queueCapacity)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	playlist, err := config.LoadPlaylist(*playlistPath)
	if err != nil {
		slog.Error("failed to load playlist", "error", err)
		os.Exit(1)
	}

	var codecID media.CodecID
	switch *codecFlag {
	case "h265":
		codecID = media.CodecH265
	default:
		codecID = media.CodecH264
	}

	var provider gaze.Provider
	if *useExternalTracker || config.EnvBool("ET") {
		provider = gaze.NewExternalTracker(media.FoveationDescriptor{Fx: 0.5, Fy: 0.5, Sigma: 0.3, Offset: 20})
	} else {
		provider = gaze.NewPointerFallback(gaze.CenterPointerSource{W: 1920, H: 1080})
	}

	registry := runlog.NewRegistry(nil)
	factory := pipelinerun.FFmpegFactory{}

	exitCode := 0
	for _, path := range playlist.Entries {
		run := registry.Start(path)
		slog.Info("starting run", "run_id", run.ID, "path", path)

		runErr := pipelinerun.Run(ctx, pipelinerun.Config{
			Path:                path,
			Codecs:              factory,
			Provider:            provider,
			Sink:                sink.Discard{},
			EncodeCodec:         codecID,
			PacketQueueCapacity: queueCap,
			FrameQueueCapacity:  queueCap,
			OnLagSample: func(s lag.Sample) {
				slog.Debug("lag sample", "pts", s.PTS, "lag", s.Lag)
			},
		})
		registry.Finish(run, runErr)

		if runErr != nil {
			slog.Error("run failed", "run_id", run.ID, "path", path, "error", runErr)
			exitCode = 1
			break
		}
		slog.Info("run finished", "run_id", run.ID, "path", path)
	}

	os.Exit(exitCode)
}
