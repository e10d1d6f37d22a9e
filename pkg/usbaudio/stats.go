package usbaudio

import "time"

// Stats is a snapshot of a stream's counters
type Stats struct {
	StreamID       string
	FramesProduced uint64
	OverrunCount   uint64
	WriteAttempts  uint64
	FramesConsumed uint64
	UnderrunCount  uint64

	// UnderrunRate is underruns per produced frame, in percent
	UnderrunRate float64
	// OverrunRate is overruns per consumed frame, in percent
	OverrunRate  float64

	TimingError time.Duration
}

// ComputeRates fills the derived rates from the counters.
// A zero denominator yields a rate of 0.
func (s *Stats) ComputeRates() {
	s.UnderrunRate = percent(s.UnderrunCount, s.FramesProduced)
	s.OverrunRate = percent(s.OverrunCount, s.FramesConsumed)
}

func percent(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
