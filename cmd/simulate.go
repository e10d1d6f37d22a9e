package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/drgolem/uacsim/pkg/config"
	"github.com/drgolem/uacsim/pkg/usbaudio"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

var (
	simCapacity   int
	simDuration   time.Duration
	simStreams    int
	simSeed       uint64
	simSource     string
	simCapture    string
	simMonitor    bool
	simDeviceIdx  int
	simPAFrames   int
	simStatusTick time.Duration
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated isochronous streams",
	Long: `Run one or more independent streams, each with its own ring buffer,
producer and 125µs consumer, then print the overrun/underrun statistics.

Examples:
  # One stream for one second with the default 80 microframe buffer
  uacsim simulate

  # Four concurrent streams for ten seconds
  uacsim simulate -n 4 -t 10s

  # A tiny 8 microframe buffer
  uacsim simulate -b 3072

  # Stream a WAV file, record what the host received and listen to it
  uacsim simulate --source music.wav --capture received.wav --monitor -d 0

  # Settings from a file, duration overridden on the command line
  uacsim simulate -c uacsim.yaml -t 30s

Status Reporting:
  Buffer fill level and counters are logged for every stream at the status
  interval (default 1s, 0 disables).`,
	Args: cobra.NoArgs,
	Run:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVarP(&simCapacity, "capacity", "b", 0, "Ring buffer capacity in bytes (default 30720)")
	simulateCmd.Flags().DurationVarP(&simDuration, "duration", "t", 0, "Streaming duration (default 1s)")
	simulateCmd.Flags().IntVarP(&simStreams, "streams", "n", 0, "Number of concurrent streams (default 1)")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "Random source seed (0 = time based)")
	simulateCmd.Flags().StringVar(&simSource, "source", "", "WAV file to stream instead of white noise")
	simulateCmd.Flags().StringVarP(&simCapture, "capture", "o", "", "Record consumed audio to this WAV file")
	simulateCmd.Flags().BoolVarP(&simMonitor, "monitor", "m", false, "Play consumed audio through PortAudio")
	simulateCmd.Flags().IntVarP(&simDeviceIdx, "device", "d", 1, "Audio output device index for --monitor")
	simulateCmd.Flags().IntVarP(&simPAFrames, "paframes", "p", 512, "PortAudio frames per buffer for --monitor")
	simulateCmd.Flags().DurationVar(&simStatusTick, "status", time.Second, "Status interval (0 disables)")
}

// applySimulateFlags lays explicitly set flags over the file configuration
func applySimulateFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("capacity") {
		cfg.CapacityBytes = simCapacity
	}
	if flags.Changed("duration") {
		cfg.Duration = simDuration
	}
	if flags.Changed("streams") {
		cfg.Streams = simStreams
	}
	if flags.Changed("seed") {
		cfg.Seed = simSeed
	}
	if flags.Changed("source") {
		cfg.Source = config.SourceConfig{Type: config.SourceWAV, Path: simSource}
	}
	if flags.Changed("capture") {
		cfg.Capture.Path = simCapture
	}
	if flags.Changed("monitor") {
		cfg.Monitor.Enabled = simMonitor
	}
	if flags.Changed("device") {
		cfg.Monitor.Device = simDeviceIdx
	}
	if flags.Changed("paframes") {
		cfg.Monitor.FramesPerBuffer = simPAFrames
	}
	if flags.Changed("status") {
		cfg.StatusInterval = simStatusTick
	}
}

func runSimulate(cmd *cobra.Command, args []string) {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applySimulateFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := simulate(cfg); err != nil {
		slog.Error("Simulation failed", "error", err)
		os.Exit(1)
	}
}

// simulate runs every stream of cfg to completion. Resources are released
// before it returns.
func simulate(cfg config.Config) error {
	if cfg.Monitor.Enabled {
		slog.Info("Initializing PortAudio")
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer portaudio.Terminate()
		slog.Info("PortAudio initialized", "version", portaudio.GetVersion())
	}

	slog.Info("Configuration",
		"capacity_bytes", cfg.CapacityBytes,
		"capacity_frames", cfg.CapacityBytes/cfg.FrameSize,
		"frame_size", cfg.FrameSize,
		"audio_data_size", cfg.AudioDataSize,
		"interval", cfg.Interval,
		"duration", cfg.Duration,
		"streams", cfg.Streams,
		"source", cfg.Source.Type)

	streams, err := buildStreams(cfg)
	if err != nil {
		return err
	}
	defer closeStreams(streams)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusDone := make(chan struct{})
	if cfg.StatusInterval > 0 {
		go monitorStreams(streams, cfg.StatusInterval, statusDone)
	}

	results := make([]usbaudio.Stats, len(streams))
	var wg sync.WaitGroup
	for i, st := range streams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := st.orch.Run(ctx, cfg.Duration)
			if err != nil {
				slog.Error("Stream failed", "stream_id", st.orch.ID(), "error", err)
			}
			results[i] = stats
		}()
	}
	wg.Wait()
	close(statusDone)

	if ctx.Err() != nil {
		slog.Info("Simulation interrupted")
	}

	for _, st := range streams {
		st.orch.PrintStatistics()
	}
	fmt.Println(renderStats(results))
	return nil
}

// buildStreams creates every stream of cfg. On failure the streams already
// built are closed.
func buildStreams(cfg config.Config) ([]*simStream, error) {
	streams := make([]*simStream, 0, cfg.Streams)
	for i := 0; i < cfg.Streams; i++ {
		st, err := newStream(cfg, i)
		if err != nil {
			closeStreams(streams)
			return nil, fmt.Errorf("failed to create stream %d: %w", i, err)
		}
		streams = append(streams, st)
	}
	return streams, nil
}

func closeStreams(streams []*simStream) {
	for _, st := range streams {
		if err := st.close(); err != nil {
			slog.Error("Failed to close stream", "stream_id", st.orch.ID(), "error", err)
		}
	}
}

// monitorStreams logs buffer status for every stream at each tick
func monitorStreams(streams []*simStream, interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ticker.C:
			elapsedStr := formatElapsed(time.Since(start))
			for _, st := range streams {
				available, capacity := st.orch.BufferStatus()
				s := st.orch.Statistics()

				fill := 0.0
				if capacity > 0 {
					fill = float64(available) / float64(capacity) * 100
				}

				slog.Info("Stream status",
					"stream_id", s.StreamID,
					"buffer", fmt.Sprintf("%d/%d", available, capacity),
					"fill_pct", fmt.Sprintf("%.1f", fill),
					"produced", s.FramesProduced,
					"consumed", s.FramesConsumed,
					"overruns", s.OverrunCount,
					"underruns", s.UnderrunCount,
					"timing_error", s.TimingError,
					"elapsed", elapsedStr)

				if st.monitor != nil {
					ms := st.monitor.Status()
					playedTimeSeconds := float64(ms.PlayedSamples) / float64(ms.SampleRate)
					slog.Info("Monitor status",
						"portaudio", fmt.Sprintf("%dHz:16bit:%dch:%dframes", ms.SampleRate, ms.Channels, ms.FramesPerBuffer),
						"played", formatElapsed(time.Duration(playedTimeSeconds*float64(time.Second))),
						"buffered_bytes", ms.BufferedBytes,
						"dropped_frames", ms.DroppedFrames)
				}
			}
		case <-done:
			return
		}
	}
}

// formatElapsed formats d as hh:mm:ss.msec
func formatElapsed(d time.Duration) string {
	totalMilliseconds := d.Milliseconds()
	hours := totalMilliseconds / 3600000
	minutes := (totalMilliseconds % 3600000) / 60000
	seconds := (totalMilliseconds % 60000) / 1000
	milliseconds := totalMilliseconds % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, milliseconds)
}
