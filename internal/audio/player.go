// Package audio plays the probe sound with beep and reports when playback
// finishes. It implements probe.Player for WAV, OGG and MP3 files and for a
// built-in silent clip.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/jmylchreest/soundmode/internal/probe"
)

// BuiltinSilence names the built-in near-silent probe clip.
const BuiltinSilence = "builtin:silence"

// builtinDuration is comfortably above the classification threshold.
const builtinDuration = 600 * time.Millisecond

// defaultFormat is used for the built-in clip and as the initial speaker rate.
var defaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// ErrUnknownHandle is returned for handles that were never prepared or already disposed.
var ErrUnknownHandle = errors.New("unknown sound handle")

var (
	_ probe.Player         = (*Player)(nil)
	_ probe.DurationProber = (*Player)(nil)
)

// Options configures a Player.
type Options struct {
	// Volume from 0.0 to 1.0. Zero means silent playback.
	Volume float64
	// Suppressed reports whether audible alerts are currently suppressed.
	// A suppressed play completes immediately without touching the output.
	Suppressed func() bool
	// Output defaults to the system speaker.
	Output Output

	Logger *slog.Logger
}

// Player handles probe sound playback.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger
	out    Output

	// Volume control (0.0 to 1.0)
	volume     float64
	suppressed func() bool

	// Whether the output has been initialized, and at which rate
	initialized bool
	sampleRate  beep.SampleRate

	next    probe.Handle
	handles map[probe.Handle]string

	// Decoded sounds keyed by asset reference
	cache      map[string]*beep.Buffer
	cacheMutex sync.RWMutex
}

// NewPlayer creates a new probe player.
func NewPlayer(opts Options) *Player {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Output == nil {
		opts.Output = &SpeakerOutput{}
	}

	p := &Player{
		logger:     opts.Logger,
		out:        opts.Output,
		suppressed: opts.Suppressed,
		sampleRate: defaultFormat.SampleRate,
		handles:    make(map[probe.Handle]string),
		cache:      make(map[string]*beep.Buffer),
	}
	p.SetVolume(opts.Volume)
	return p
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = min(max(volume, 0), 1)
	p.logger.Debug("volume set", "volume", p.volume)
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Prepare implements probe.Player. The asset is decoded once and cached.
func (p *Player) Prepare(asset string) (probe.Handle, error) {
	asset = expandPath(asset)
	if _, err := p.buffer(asset); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	p.handles[p.next] = asset
	p.logger.Debug("probe sound prepared", "asset", asset, "handle", p.next)
	return p.next, nil
}

// Duration implements probe.DurationProber.
func (p *Player) Duration(asset string) (time.Duration, error) {
	buf, err := p.buffer(expandPath(asset))
	if err != nil {
		return 0, err
	}
	return buf.Format().SampleRate.D(buf.Len()), nil
}

// Play implements probe.Player. onComplete runs on its own goroutine once the
// clip has been fully rendered, or right away when playback is suppressed.
func (p *Player) Play(h probe.Handle, onComplete func()) error {
	p.mu.Lock()
	asset, ok := p.handles[h]
	suppressed := p.suppressed
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	if suppressed != nil && suppressed() {
		p.logger.Debug("playback suppressed", "asset", asset)
		go onComplete()
		return nil
	}

	buf, err := p.buffer(asset)
	if err != nil {
		return err
	}

	if err := p.ensureInitialized(buf.Format().SampleRate); err != nil {
		return err
	}

	streamer := p.streamer(buf)
	p.out.Play(beep.Seq(streamer, beep.Callback(func() {
		// Called from the output's mixing goroutine
		go onComplete()
	})))
	return nil
}

// Dispose implements probe.Player. The decoded sound stays cached for other handles.
func (p *Player) Dispose(h probe.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.handles[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(p.handles, h)
	return nil
}

// buffer returns the decoded asset, loading it on first use.
func (p *Player) buffer(asset string) (*beep.Buffer, error) {
	p.cacheMutex.RLock()
	buf, ok := p.cache[asset]
	p.cacheMutex.RUnlock()
	if ok {
		return buf, nil
	}

	buf, err := loadSound(asset)
	if err != nil {
		p.logger.Warn("failed to load sound", "asset", asset, "error", err)
		return nil, err
	}

	p.cacheMutex.Lock()
	p.cache[asset] = buf
	p.cacheMutex.Unlock()

	return buf, nil
}

// streamer builds the playback chain for a buffer.
func (p *Player) streamer(buf *beep.Buffer) beep.Streamer {
	p.mu.Lock()
	volume := p.volume
	sampleRate := p.sampleRate
	p.mu.Unlock()

	var streamer beep.Streamer = buf.Streamer(0, buf.Len())

	if buf.Format().SampleRate != sampleRate {
		streamer = beep.Resample(4, buf.Format().SampleRate, sampleRate, streamer)
	}

	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     10,
			Volume:   volumeToExponent(volume),
			Silent:   volume == 0,
		}
	}

	return streamer
}

// ensureInitialized initializes the output if not already done.
func (p *Player) ensureInitialized(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	if err := p.out.Init(sampleRate); err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("audio output initialized", "sample_rate", sampleRate)
	return nil
}

// InvalidateCache drops a decoded asset so the next use reloads it.
func (p *Player) InvalidateCache(asset string) {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	delete(p.cache, asset)
}

// Close releases the output. Prepared handles stay valid and reinitialize it on use.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		p.out.Close()
		p.initialized = false
	}
	p.logger.Debug("audio player closed")
}

// loadSound decodes an asset reference into a buffer.
func loadSound(asset string) (*beep.Buffer, error) {
	if asset == BuiltinSilence {
		buf := beep.NewBuffer(defaultFormat)
		buf.Append(beep.Silence(defaultFormat.SampleRate.N(builtinDuration)))
		return buf, nil
	}
	if asset == "" {
		return nil, errors.New("no probe sound configured")
	}

	f, err := os.Open(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(asset))

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)

	if buf.Len() == 0 {
		return nil, errors.New("sound file contains no samples")
	}

	return buf, nil
}

// volumeToExponent converts a linear volume (0-1] to a base-10 exponent for effects.Volume.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log10(volume)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
