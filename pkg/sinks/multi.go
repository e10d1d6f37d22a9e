package sinks

import (
	"errors"

	"github.com/drgolem/uacsim/pkg/types"
)

// Multi fans every frame out to several sinks in order
type Multi []types.FrameSink

// WriteFrame forwards frame to each sink
func (m Multi) WriteFrame(frame []byte) {
	for _, s := range m {
		s.WriteFrame(frame)
	}
}

// Close closes every sink and joins their errors
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a sink that drops every frame
type Discard struct{}

func (Discard) WriteFrame([]byte) {}
func (Discard) Close() error      { return nil }

var (
	_ types.FrameSink = Multi(nil)
	_ types.FrameSink = Discard{}
)
