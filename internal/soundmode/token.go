package soundmode

import (
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
)

// ChangeHandler receives the new mode after a change.
type ChangeHandler func(mode model.SoundMode)

// ResultHandler receives the probe result behind a change.
type ResultHandler func(res probe.Result)

// Token is a caller-held subscription to mode changes.
//
// The manager only holds tokens weakly: the subscription lasts while the
// caller keeps a reference. Invalidate ends it immediately; dropping the last
// reference ends it once the token is collected, which may be several
// deliveries later.
type Token struct {
	id       uint64
	onChange ChangeHandler
	onResult ResultHandler
	registry weak.Pointer[registry]
	cleanup  runtime.Cleanup
	once     sync.Once
	invalid  atomic.Bool
}

// Invalidate removes the subscription. Once it returns no new call to the
// handler is started; a call already running on the delivery context may
// still finish. Safe to call more than once.
func (t *Token) Invalidate() {
	t.invalid.Store(true)
	t.once.Do(func() {
		t.cleanup.Stop()
		if r := t.registry.Value(); r != nil {
			r.remove(t.id)
		}
	})
}

// registry holds weak references to live tokens keyed by id.
type registry struct {
	mu     sync.Mutex
	nextID uint64
	tokens map[uint64]weak.Pointer[Token]
}

func newRegistry() *registry {
	return &registry{tokens: make(map[uint64]weak.Pointer[Token])}
}

// cleanupRef is the argument of a token's cleanup; it must not reference the token.
type cleanupRef struct {
	registry weak.Pointer[registry]
	id       uint64
}

// add registers a handler and returns its token.
func (r *registry) add(onChange ChangeHandler) *Token {
	return r.register(&Token{onChange: onChange})
}

// addResult registers a handler that also receives the probe result.
func (r *registry) addResult(onResult ResultHandler) *Token {
	return r.register(&Token{onResult: onResult})
}

func (r *registry) register(tok *Token) *Token {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	tok.id = id
	tok.registry = weak.Make(r)
	r.tokens[id] = weak.Make(tok)
	r.mu.Unlock()

	tok.cleanup = runtime.AddCleanup(tok, func(ref cleanupRef) {
		if reg := ref.registry.Value(); reg != nil {
			reg.remove(ref.id)
		}
	}, cleanupRef{registry: weak.Make(r), id: id})

	return tok
}

// remove drops an id. Removing an absent id is a no-op.
func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, id)
}

// lookup resolves a live token, pruning entries whose token was collected.
func (r *registry) lookup(id uint64) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.tokens[id]
	if !ok {
		return nil
	}
	tok := wp.Value()
	if tok == nil {
		delete(r.tokens, id)
	}
	return tok
}

// ids returns registered ids in subscription order.
func (r *registry) ids() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.tokens))
}

// count returns the number of registered entries, including uncollected dropped tokens.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// notify calls every live handler with mode and returns how many were called.
func (r *registry) notify(mode model.SoundMode) int {
	return r.notifyResult(probe.Result{Mode: mode})
}

// notifyResult calls every live handler and returns how many were called.
// Each id is re-resolved right before its call and the token's invalid flag
// checked last, so a token invalidated by an earlier handler or by another
// goroutine is skipped.
func (r *registry) notifyResult(res probe.Result) int {
	n := 0
	for _, id := range r.ids() {
		tok := r.lookup(id)
		if tok == nil || tok.invalid.Load() {
			continue
		}
		switch {
		case tok.onResult != nil:
			tok.onResult(res)
		case tok.onChange != nil:
			tok.onChange(res.Mode)
		default:
			continue
		}
		n++
	}
	return n
}
