package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output renders streamers. Implementations must eventually drain every
// streamer they are given.
type Output interface {
	// Init prepares the output for the given sample rate. Called once before the first Play.
	Init(sampleRate beep.SampleRate) error
	Play(s beep.Streamer)
	Close()
}

// SpeakerOutput plays through the system audio device.
type SpeakerOutput struct {
	// BufferDuration bounds output latency. Zero means 100ms.
	BufferDuration time.Duration
}

// Init implements Output.
func (o *SpeakerOutput) Init(sampleRate beep.SampleRate) error {
	d := o.BufferDuration
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	return speaker.Init(sampleRate, sampleRate.N(d))
}

// Play implements Output.
func (o *SpeakerOutput) Play(s beep.Streamer) {
	speaker.Play(s)
}

// Close implements Output.
func (o *SpeakerOutput) Close() {
	speaker.Close()
}

// PacedOutput drains streamers in real time without an audio device. Each
// streamer runs on its own goroutine, like a mixer voice.
type PacedOutput struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	chunk      int
	wg         sync.WaitGroup
}

// Init implements Output.
func (o *PacedOutput) Init(sampleRate beep.SampleRate) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sampleRate = sampleRate
	o.chunk = max(sampleRate.N(10*time.Millisecond), 1)
	return nil
}

// Play implements Output.
func (o *PacedOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	sampleRate, chunk := o.sampleRate, o.chunk
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		buf := make([][2]float64, chunk)
		for {
			n, ok := s.Stream(buf)
			if n > 0 {
				time.Sleep(sampleRate.D(n))
			}
			if !ok {
				return
			}
		}
	}()
}

// Close implements Output. It waits for running streamers to finish.
func (o *PacedOutput) Close() {
	o.wg.Wait()
}
