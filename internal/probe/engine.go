package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/model"
)

const (
	// ClassificationThreshold separates suppressed playback from audible playback.
	ClassificationThreshold = 100 * time.Millisecond

	// MinAssetDuration is the clip length below which results become unreliable.
	MinAssetDuration = 500 * time.Millisecond
)

// Result is the outcome of one probe.
type Result struct {
	Seq     uint64
	Mode    model.SoundMode // ModeNotDetermined when Err is set
	Elapsed time.Duration
	Err     error
}

// Options configures an Engine.
type Options struct {
	// Timeout abandons a probe whose completion never arrives. Zero disables it.
	Timeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Engine owns the single in-flight probe of a manager.
type Engine struct {
	mu      sync.Mutex
	logger  *slog.Logger
	player  Player
	handle  Handle
	asset   string
	now     func() time.Time
	timeout time.Duration

	seq       uint64
	probing   bool
	startedAt time.Time
	deadline  *time.Timer
	closed    bool
}

// NewEngine prepares the probe asset and returns an engine ready to probe.
// Preparation failures are returned as *SetupError.
func NewEngine(player Player, asset string, opts Options) (*Engine, error) {
	if player == nil {
		return nil, newSetupError(asset, errors.New("no player configured"))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	handle, err := player.Prepare(asset)
	if err != nil {
		return nil, newSetupError(asset, err)
	}

	e := &Engine{
		logger:  opts.Logger,
		player:  player,
		handle:  handle,
		asset:   asset,
		now:     opts.Now,
		timeout: opts.Timeout,
	}

	if dp, ok := player.(DurationProber); ok {
		e.checkDuration(dp)
	}

	return e, nil
}

// checkDuration warns when the clip is too short to tell the outcomes apart.
func (e *Engine) checkDuration(dp DurationProber) {
	d, err := dp.Duration(e.asset)
	if err != nil {
		e.logger.Debug("could not determine probe sound duration", "asset", e.asset, "error", err)
		return
	}
	if d < MinAssetDuration {
		e.logger.Warn("probe sound is shorter than recommended",
			"asset", e.asset, "duration", d, "recommended", MinAssetDuration)
		return
	}
	e.logger.Debug("probe sound prepared", "asset", e.asset, "duration", d)
}

// Classify maps an elapsed playback time to a sound mode.
func Classify(elapsed time.Duration) model.SoundMode {
	if elapsed < ClassificationThreshold {
		return model.ModeSilent
	}
	return model.ModeRing
}

// Start begins a probe and reports its outcome to onResult.
//
// If a probe is already in flight nothing is started and the sequence number
// of the running probe is returned with started=false. onResult is called
// exactly once for every started probe, from the player's goroutine.
func (e *Engine) Start(onResult func(Result)) (seq uint64, started bool, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, false, ErrEngineClosed
	}
	if e.probing {
		seq = e.seq
		e.mu.Unlock()
		return seq, false, nil
	}

	e.seq++
	seq = e.seq
	e.probing = true
	e.startedAt = e.now()
	if e.timeout > 0 {
		e.deadline = time.AfterFunc(e.timeout, func() { e.abandon(seq, onResult) })
	}
	e.mu.Unlock()

	e.logger.Debug("probe started", "seq", seq)

	if err := e.player.Play(e.handle, func() { e.complete(seq, onResult) }); err != nil {
		e.mu.Lock()
		if e.probing && e.seq == seq {
			e.reset()
		}
		e.mu.Unlock()
		return seq, false, fmt.Errorf("failed to play probe sound: %w", err)
	}

	return seq, true, nil
}

// complete handles the player's completion callback.
func (e *Engine) complete(seq uint64, onResult func(Result)) {
	e.mu.Lock()
	if !e.probing || e.seq != seq {
		e.mu.Unlock()
		e.logger.Debug("ignoring stale probe completion", "seq", seq)
		return
	}
	elapsed := e.now().Sub(e.startedAt)
	e.reset()
	e.mu.Unlock()

	mode := Classify(elapsed)
	e.logger.Debug("probe completed", "seq", seq, "elapsed", elapsed, "mode", mode)

	if onResult != nil {
		onResult(Result{Seq: seq, Mode: mode, Elapsed: elapsed})
	}
}

// abandon gives up on a probe whose completion did not arrive within the timeout.
func (e *Engine) abandon(seq uint64, onResult func(Result)) {
	e.mu.Lock()
	if !e.probing || e.seq != seq {
		e.mu.Unlock()
		return
	}
	elapsed := e.now().Sub(e.startedAt)
	e.reset()
	e.mu.Unlock()

	e.logger.Warn("probe abandoned", "seq", seq, "timeout", e.timeout)

	if onResult != nil {
		onResult(Result{Seq: seq, Elapsed: elapsed, Err: ErrProbeTimeout})
	}
}

// reset clears the in-flight state. Caller must hold e.mu.
func (e *Engine) reset() {
	e.probing = false
	e.startedAt = time.Time{}
	if e.deadline != nil {
		e.deadline.Stop()
		e.deadline = nil
	}
}

// IsProbing reports whether a probe is in flight.
func (e *Engine) IsProbing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.probing
}

// Close releases the prepared sound. Completions arriving afterwards are dropped.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.reset()
	e.mu.Unlock()

	if err := e.player.Dispose(e.handle); err != nil {
		return fmt.Errorf("failed to dispose probe sound: %w", err)
	}
	return nil
}
