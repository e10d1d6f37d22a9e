package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/drgolem/uacsim/internal/monitor"
	"github.com/drgolem/uacsim/pkg/config"
	"github.com/drgolem/uacsim/pkg/rbcontroller"
	"github.com/drgolem/uacsim/pkg/sinks"
	"github.com/drgolem/uacsim/pkg/sources"
	"github.com/drgolem/uacsim/pkg/types"
	"github.com/drgolem/uacsim/pkg/usbaudio"
)

// simStream bundles one orchestrator with the resources it owns
type simStream struct {
	ctrl    *rbcontroller.Controller
	orch    *usbaudio.Orchestrator
	sink    sinks.Multi
	capture *sinks.Capture
	monitor *monitor.Monitor
}

// newStream builds stream index of cfg. Only stream 0 gets the live monitor,
// since every stream would otherwise compete for the same output device.
func newStream(cfg config.Config, index int) (*simStream, error) {
	st := &simStream{ctrl: rbcontroller.New(slog.Default())}
	if err := st.ctrl.Initialize(cfg.CapacityBytes); err != nil {
		return nil, err
	}

	source, err := newSource(cfg, index)
	if err != nil {
		st.close()
		return nil, err
	}

	if cfg.Capture.Path != "" {
		st.capture, err = sinks.NewCapture(capturePath(cfg.Capture.Path, index, cfg.Streams),
			cfg.Layout(), cfg.SampleRate, cfg.Channels, cfg.Capture.MaxSeconds)
		if err != nil {
			st.close()
			return nil, err
		}
		st.sink = append(st.sink, st.capture)
	}

	if cfg.Monitor.Enabled && index == 0 {
		st.monitor, err = monitor.New(cfg.Monitor.Device, cfg.Monitor.FramesPerBuffer,
			cfg.SampleRate, cfg.Channels, cfg.Layout(), monitor.DefaultBufferBytes)
		if err != nil {
			st.close()
			return nil, err
		}
		if err := st.monitor.Start(); err != nil {
			st.monitor = nil
			st.close()
			return nil, err
		}
		st.sink = append(st.sink, st.monitor)
	}

	opts := []usbaudio.Option{
		usbaudio.WithLayout(cfg.Layout()),
		usbaudio.WithInterval(cfg.Interval),
		usbaudio.WithSource(source),
	}
	if len(st.sink) > 0 {
		opts = append(opts, usbaudio.WithSink(st.sink))
	}

	st.orch = usbaudio.New(st.ctrl, opts...)
	return st, nil
}

func newSource(cfg config.Config, index int) (types.SampleSource, error) {
	switch cfg.Source.Type {
	case config.SourceWAV:
		src, err := sources.OpenWAV(cfg.Source.Path, cfg.SampleRate, cfg.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to open source: %w", err)
		}
		return src, nil
	default:
		seed := cfg.Seed
		if seed != 0 {
			seed += uint64(index)
		}
		return sources.NewRandom(seed), nil
	}
}

// capturePath adds the stream index to the file name when several streams run
func capturePath(path string, index, streams int) string {
	if streams <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), index, ext)
}

// close releases sinks and the buffer. The stream must be stopped first.
func (st *simStream) close() error {
	var errs []error
	if err := st.sink.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := st.ctrl.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
