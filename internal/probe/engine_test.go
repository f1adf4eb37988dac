package probe_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
	"github.com/jmylchreest/soundmode/internal/probe/probetest"
)

func newTestEngine(t *testing.T, opts probe.Options) (*probe.Engine, *probetest.Player, *probetest.Clock) {
	t.Helper()
	player := probetest.NewPlayer()
	clock := probetest.NewClock()
	opts.Now = clock.Now
	e, err := probe.NewEngine(player, "probe.wav", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, player, clock
}

// recorder collects results delivered to onResult.
type recorder struct {
	mu      sync.Mutex
	results []probe.Result
}

func (r *recorder) record(res probe.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []probe.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]probe.Result(nil), r.results...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    model.SoundMode
	}{
		{0, model.ModeSilent},
		{50 * time.Millisecond, model.ModeSilent},
		{99 * time.Millisecond, model.ModeSilent},
		{100 * time.Millisecond, model.ModeRing},
		{600 * time.Millisecond, model.ModeRing},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, probe.Classify(tt.elapsed))
		})
	}
}

func TestNewEngine_SetupError(t *testing.T) {
	player := probetest.NewPlayer()
	player.PrepareErr = errors.New("asset invalid")

	e, err := probe.NewEngine(player, "missing.wav", probe.Options{})
	assert.Nil(t, e)
	require.Error(t, err)

	var setupErr *probe.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "missing.wav", setupErr.Asset)
	assert.Contains(t, err.Error(), "asset invalid")
	assert.ErrorIs(t, err, player.PrepareErr)
}

func TestNewEngine_NilPlayer(t *testing.T) {
	_, err := probe.NewEngine(nil, "probe.wav", probe.Options{})
	var setupErr *probe.SetupError
	assert.ErrorAs(t, err, &setupErr)
}

func TestEngine_ClassifiesSilentAndRing(t *testing.T) {
	e, player, clock := newTestEngine(t, probe.Options{})
	rec := &recorder{}

	_, started, err := e.Start(rec.record)
	require.NoError(t, err)
	require.True(t, started)
	assert.True(t, e.IsProbing())

	clock.Advance(50 * time.Millisecond)
	require.True(t, player.Complete())
	assert.False(t, e.IsProbing())

	_, started, err = e.Start(rec.record)
	require.NoError(t, err)
	require.True(t, started)

	clock.Advance(600 * time.Millisecond)
	require.True(t, player.Complete())

	results := rec.all()
	require.Len(t, results, 2)
	assert.Equal(t, model.ModeSilent, results[0].Mode)
	assert.Equal(t, 50*time.Millisecond, results[0].Elapsed)
	assert.Equal(t, model.ModeRing, results[1].Mode)
	assert.Equal(t, 600*time.Millisecond, results[1].Elapsed)
	assert.Equal(t, uint64(1), results[0].Seq)
	assert.Equal(t, uint64(2), results[1].Seq)
}

func TestEngine_SkipsWhileProbing(t *testing.T) {
	e, player, _ := newTestEngine(t, probe.Options{})
	rec := &recorder{}

	seq, started, err := e.Start(rec.record)
	require.NoError(t, err)
	require.True(t, started)

	for range 5 {
		again, started, err := e.Start(rec.record)
		require.NoError(t, err)
		assert.False(t, started)
		assert.Equal(t, seq, again)
	}

	assert.Equal(t, 1, player.Plays())
	require.True(t, player.Complete())
	assert.Len(t, rec.all(), 1)
}

func TestEngine_PlayErrorClearsProbing(t *testing.T) {
	e, player, _ := newTestEngine(t, probe.Options{})
	player.PlayErr = errors.New("device busy")

	_, started, err := e.Start(func(probe.Result) {})
	assert.False(t, started)
	assert.ErrorIs(t, err, player.PlayErr)
	assert.False(t, e.IsProbing())

	player.PlayErr = nil
	_, started, err = e.Start(func(probe.Result) {})
	require.NoError(t, err)
	assert.True(t, started)
}

func TestEngine_NoTimeoutKeepsProbing(t *testing.T) {
	e, _, _ := newTestEngine(t, probe.Options{})

	_, started, err := e.Start(func(probe.Result) {})
	require.NoError(t, err)
	require.True(t, started)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, e.IsProbing())
}

func TestEngine_TimeoutAbandonsProbe(t *testing.T) {
	e, player, _ := newTestEngine(t, probe.Options{Timeout: 10 * time.Millisecond})
	rec := &recorder{}

	_, started, err := e.Start(rec.record)
	require.NoError(t, err)
	require.True(t, started)

	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	res := rec.all()[0]
	assert.ErrorIs(t, res.Err, probe.ErrProbeTimeout)
	assert.Equal(t, model.ModeNotDetermined, res.Mode)
	assert.False(t, e.IsProbing())

	// The late completion of the abandoned probe is ignored.
	require.True(t, player.Complete())
	assert.Len(t, rec.all(), 1)
}

func TestEngine_Close(t *testing.T) {
	player := probetest.NewPlayer()
	e, err := probe.NewEngine(player, "probe.wav", probe.Options{})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Len(t, player.Disposed(), 1)

	_, _, err = e.Start(func(probe.Result) {})
	assert.ErrorIs(t, err, probe.ErrEngineClosed)
}

func TestEngine_CompletionAfterCloseIsDropped(t *testing.T) {
	player := probetest.NewPlayer()
	e, err := probe.NewEngine(player, "probe.wav", probe.Options{})
	require.NoError(t, err)

	rec := &recorder{}
	_, started, err := e.Start(rec.record)
	require.NoError(t, err)
	require.True(t, started)

	require.NoError(t, e.Close())
	require.True(t, player.Complete())
	assert.Empty(t, rec.all())
}
