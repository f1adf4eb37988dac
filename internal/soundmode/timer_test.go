package soundmode

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_Ticks(t *testing.T) {
	timer := NewTimer(nil)
	defer timer.Stop()

	var ticks atomic.Int32
	timer.Start(10*time.Millisecond, func() { ticks.Add(1) })

	assert.True(t, timer.Armed())
	assert.Equal(t, 10*time.Millisecond, timer.Interval())
	assert.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTimer_StartWhileArmedIsNoop(t *testing.T) {
	timer := NewTimer(nil)
	defer timer.Stop()

	var first, second atomic.Int32
	timer.Start(10*time.Millisecond, func() { first.Add(1) })
	timer.Start(10*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool {
		return first.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), second.Load())
}

func TestTimer_StartThenStopNeverTicks(t *testing.T) {
	timer := NewTimer(nil)

	var ticks atomic.Int32
	timer.Start(20*time.Millisecond, func() { ticks.Add(1) })
	timer.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), ticks.Load())
	assert.False(t, timer.Armed())
}

func TestTimer_StopIdempotent(t *testing.T) {
	timer := NewTimer(nil)

	assert.NotPanics(t, func() {
		timer.Stop()
		timer.Start(time.Hour, func() {})
		timer.Stop()
		timer.Stop()
	})
}

func TestTimer_Rearm(t *testing.T) {
	timer := NewTimer(nil)
	defer timer.Stop()

	var stale, fresh atomic.Int32
	timer.Start(time.Hour, func() { stale.Add(1) })
	timer.Stop()
	timer.Start(10*time.Millisecond, func() { fresh.Add(1) })

	assert.Eventually(t, func() bool {
		return fresh.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), stale.Load())
}
