package main

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/ringbuffer"
)

const (
	sampleRate = 96000
	channels   = 2
	frameCount = 1000
)

func main() {
	fmt.Println("Acquire/Commit Microframe Demo")
	fmt.Println("==============================")

	layout := microframe.DefaultLayout()

	// 8 microframes: the producer stalls quickly and has to wait
	rb, err := ringbuffer.New(8 * layout.FrameSize)
	if err != nil {
		fmt.Println("Failed to create ring buffer:", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Producer: packs samples straight into the granted region
	go func() {
		defer wg.Done()

		samples := make([]float32, layout.SamplesPerFrame())
		var waits int

		for i := 0; i < frameCount; i++ {
			generateSine(samples, i)

			region, err := rb.AcquireWrite(layout.FrameSize)
			for err != nil || len(region) < layout.FrameSize {
				waits++
				time.Sleep(10 * time.Microsecond)
				region, err = rb.AcquireWrite(layout.FrameSize)
			}

			microframe.Pack(region, samples)
			if err := rb.CommitWrite(len(region)); err != nil {
				fmt.Println("Producer: commit failed:", err)
				return
			}
		}
		fmt.Printf("Producer: wrote %d frames, waited %d times for space\n", frameCount, waits)
	}()

	// Consumer: one frame every 125µs, read in place
	go func() {
		defer wg.Done()

		samples := make([]float32, layout.SamplesPerFrame())
		var consumed, underruns int
		var peak float32

		next := time.Now().Add(microframe.DefaultInterval)
		for consumed < frameCount {
			time.Sleep(time.Until(next))
			next = next.Add(microframe.DefaultInterval)

			region, err := rb.AcquireRead(layout.FrameSize)
			if err != nil || len(region) != layout.FrameSize {
				underruns++
				continue
			}

			n := microframe.Unpack(samples, region[:layout.AudioDataSize])
			for _, s := range samples[:n] {
				peak = max(peak, float32(math.Abs(float64(s))))
			}

			rb.CommitRead(layout.FrameSize)
			consumed++

			if consumed%250 == 0 {
				fmt.Printf("Consumer: %d frames, %d underruns, %d bytes buffered\n",
					consumed, underruns, rb.AvailableRead())
			}
		}

		fmt.Printf("\nConsumer: finished %d frames, %d underruns, peak %.3f\n", consumed, underruns, peak)
	}()

	wg.Wait()
	fmt.Println("\nDemo completed!")
}

// generateSine fills samples with frame i of an interleaved 1kHz sine
func generateSine(samples []float32, i int) {
	perChannel := len(samples) / channels
	for s := 0; s < perChannel; s++ {
		t := float64(i*perChannel+s) / sampleRate
		v := float32(0.3 * math.Sin(2*math.Pi*1000*t))
		for ch := 0; ch < channels; ch++ {
			samples[s*channels+ch] = v
		}
	}
}
