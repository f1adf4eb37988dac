package daemon

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/dbus"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
	"github.com/jmylchreest/soundmode/internal/store"
)

// modeEmitter is the part of the D-Bus server the recorder needs.
type modeEmitter interface {
	EmitModeChanged(mode, previous model.SoundMode) error
}

// recorder fans a mode change out to the transition history, the shared
// state file and the D-Bus ModeChanged signal. It is driven by a manager
// subscription, so calls arrive one at a time on the delivery context.
type recorder struct {
	mu     sync.Mutex
	logger *slog.Logger

	history   *store.History // nil when history is disabled
	statePath string         // empty when the shared state is not ours to write
	emitter   modeEmitter    // nil when D-Bus is disabled
	source    string

	previous model.SoundMode
	// observing is set while the shared state's observing flag was raised
	// by this recorder.
	observing bool
}

func newRecorder(history *store.History, statePath string, emitter modeEmitter, source string,
	logger *slog.Logger) *recorder {
	return &recorder{
		logger:    logger,
		history:   history,
		statePath: statePath,
		emitter:   emitter,
		source:    source,
	}
}

// record handles one mode change. res carries the timing of the probe that
// produced it.
func (r *recorder) record(res probe.Result) {
	mode := res.Mode

	r.mu.Lock()
	previous := r.previous
	r.previous = mode
	r.mu.Unlock()

	if r.history != nil {
		r.addTransition(previous, mode, res.Elapsed)
	}

	if r.statePath != "" {
		_, err := store.UpdateSharedState(r.statePath, func(s *store.SharedState) {
			s.RecordMode(mode, time.Now())
		})
		if err != nil {
			r.logger.Warn("failed to update shared state", "error", err)
		}
	}

	if r.emitter != nil {
		if err := r.emitter.EmitModeChanged(mode, previous); err != nil {
			if errors.Is(err, dbus.ErrNotConnected) {
				r.logger.Debug("skipping ModeChanged signal, not connected")
			} else {
				r.logger.Warn("failed to emit ModeChanged", "error", err)
			}
		}
	}
}

func (r *recorder) addTransition(from, to model.SoundMode, elapsed time.Duration) {
	t, err := model.NewTransition(from, to, elapsed, r.source)
	if err != nil {
		r.logger.Error("failed to create transition", "error", err)
		return
	}
	if err := r.history.Add(*t); err != nil {
		r.logger.Error("failed to persist transition", "from", from, "to", to, "error", err)
		return
	}
	r.logger.Debug("recorded transition", "id", t.ID, "from", from, "to", to)
}

// recordObserving stores the observing flag in the shared state file.
func (r *recorder) recordObserving(observing bool) {
	r.mu.Lock()
	r.observing = observing
	r.mu.Unlock()

	r.writeObserving(observing)
}

// releaseObserving clears the observing flag only if this recorder raised
// it. A flag written by another process is left alone.
func (r *recorder) releaseObserving() {
	r.mu.Lock()
	owned := r.observing
	r.observing = false
	r.mu.Unlock()

	if owned {
		r.writeObserving(false)
	}
}

func (r *recorder) writeObserving(observing bool) {
	if r.statePath == "" {
		return
	}
	_, err := store.UpdateSharedState(r.statePath, func(s *store.SharedState) {
		s.Observing = observing
	})
	if err != nil {
		r.logger.Warn("failed to update shared state", "error", err)
	}
}
