package dbus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundmode/internal/model"
)

var _ Controller = (*fakeController)(nil)

type fakeController struct {
	mu        sync.Mutex
	mode      model.SoundMode
	observing bool
	hold      bool // never complete updates
	updates   int
}

func (c *fakeController) CurrentMode() model.SoundMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *fakeController) UpdateCurrentMode(completion func(model.SoundMode)) {
	c.mu.Lock()
	c.updates++
	hold, mode := c.hold, c.mode
	c.mu.Unlock()
	if !hold {
		go completion(mode)
	}
}

func (c *fakeController) BeginObserving() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observing = true
}

func (c *fakeController) EndObserving() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observing = false
}

func (c *fakeController) IsObserving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observing
}

func TestModeServer_GetMode(t *testing.T) {
	ctrl := &fakeController{mode: model.ModeSilent}
	s := NewModeServer(ctrl, nil)

	mode, dErr := s.GetMode()
	assert.Nil(t, dErr)
	assert.Equal(t, "silent", mode)
}

func TestModeServer_Update(t *testing.T) {
	ctrl := &fakeController{mode: model.ModeRing}
	s := NewModeServer(ctrl, nil)

	mode, dErr := s.Update()
	assert.Nil(t, dErr)
	assert.Equal(t, "ring", mode)
	assert.Equal(t, 1, ctrl.updates)
}

func TestModeServer_UpdateTimeout(t *testing.T) {
	ctrl := &fakeController{hold: true}
	s := NewModeServer(ctrl, nil)
	s.updateTimeout = 20 * time.Millisecond

	mode, dErr := s.Update()
	require.NotNil(t, dErr)
	assert.Empty(t, mode)
	assert.Equal(t, "org.freedesktop.DBus.Error.Failed", dErr.Name)
}

func TestModeServer_Observing(t *testing.T) {
	ctrl := &fakeController{}
	s := NewModeServer(ctrl, nil)

	assert.Nil(t, s.BeginObserving())
	on, _ := s.IsObserving()
	assert.True(t, on)

	assert.Nil(t, s.EndObserving())
	on, _ = s.IsObserving()
	assert.False(t, on)
}

func TestModeServer_EmitWithoutConnection(t *testing.T) {
	s := NewModeServer(&fakeController{}, nil)

	assert.ErrorIs(t, s.EmitModeChanged(model.ModeRing, model.ModeSilent), ErrNotConnected)
	assert.NoError(t, s.Stop())
	assert.Nil(t, s.Connection())
}

func TestIntrospection(t *testing.T) {
	var names []string
	for _, m := range modeMethods() {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"GetMode", "Update", "BeginObserving", "EndObserving", "IsObserving"}, names)

	signals := modeSignals()
	require.Len(t, signals, 1)
	assert.Equal(t, SignalModeChanged, signals[0].Name)
	assert.Len(t, signals[0].Args, 2)
}

func TestParseModeChange(t *testing.T) {
	tests := []struct {
		name    string
		body    []any
		want    ModeChange
		wantErr bool
	}{
		{"valid", []any{"ring", "silent"}, ModeChange{Mode: model.ModeRing, Previous: model.ModeSilent}, false},
		{"from undetermined", []any{"silent", "not-determined"}, ModeChange{Mode: model.ModeSilent}, false},
		{"short", []any{"ring"}, ModeChange{}, true},
		{"wrong type", []any{uint32(1), "ring"}, ModeChange{}, true},
		{"unknown mode", []any{"vibrate", "ring"}, ModeChange{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseModeChange(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogindNotifier_HandleSignal(t *testing.T) {
	n := NewLogindNotifier(nil)

	var bg, fg atomic.Int32
	unsubBG := n.OnDidEnterBackground(func() { bg.Add(1) })
	n.OnWillEnterForeground(func() { fg.Add(1) })

	sleep := func(v any) *dbus.Signal {
		return &dbus.Signal{Name: logindInterface + "." + logindSleep, Body: []any{v}}
	}

	n.handleSignal(sleep(true))
	assert.Equal(t, int32(1), bg.Load())

	n.handleSignal(sleep(false))
	assert.Equal(t, int32(1), fg.Load())

	// Malformed and unrelated signals are ignored
	n.handleSignal(nil)
	n.handleSignal(sleep("yes"))
	n.handleSignal(&dbus.Signal{Name: logindInterface + "." + logindSleep})
	n.handleSignal(&dbus.Signal{Name: "org.example.Other", Body: []any{true}})
	assert.Equal(t, int32(1), bg.Load())

	unsubBG()
	n.handleSignal(sleep(true))
	assert.Equal(t, int32(1), bg.Load())
}

func TestLogindNotifier_StopWithoutStart(t *testing.T) {
	assert.NoError(t, NewLogindNotifier(nil).Stop())
}
