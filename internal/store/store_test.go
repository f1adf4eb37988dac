package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundmode/internal/model"
)

func TestHistory_AddAndQuery(t *testing.T) {
	h := NewHistory(nil, 0)
	defer h.Close()

	t1 := testTransition(t, model.ModeNotDetermined, model.ModeSilent)
	t2 := testTransition(t, model.ModeSilent, model.ModeRing)
	require.NoError(t, h.Add(t1))
	require.NoError(t, h.Add(t2))
	require.NoError(t, h.Add(t2), "duplicate ids are ignored")

	assert.Equal(t, 2, h.Count())
	assert.Equal(t, []model.Transition{t1, t2}, h.All())
	assert.Equal(t, []model.Transition{t2, t1}, h.Recent(0))
	assert.Equal(t, []model.Transition{t2}, h.Recent(1))
	assert.Equal(t, t2.ID, h.Latest().ID)
	assert.Equal(t, t1.ID, h.GetByID(t1.ID).ID)
	assert.Nil(t, h.GetByID("missing"))
}

func TestHistory_RejectsInvalid(t *testing.T) {
	h := NewHistory(nil, 0)
	defer h.Close()

	bad := testTransition(t, model.ModeSilent, model.ModeRing)
	bad.To = bad.From

	assert.ErrorIs(t, h.Add(bad), model.ErrUnchangedTransition)
	assert.Equal(t, 0, h.Count())
	assert.Nil(t, h.Latest())
}

func TestHistory_TrimsToMaxEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	h := NewHistory(p, 2)
	defer h.Close()

	var added []model.Transition
	modes := []model.SoundMode{model.ModeSilent, model.ModeRing, model.ModeSilent, model.ModeRing}
	from := model.ModeNotDetermined
	for _, to := range modes {
		tr := testTransition(t, from, to)
		require.NoError(t, h.Add(tr))
		added = append(added, tr)
		from = to
	}

	assert.Equal(t, added[2:], h.All())
	assert.Nil(t, h.GetByID(added[0].ID))
	assert.NotNil(t, h.GetByID(added[3].ID))

	persisted, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, added[2:], persisted)
}

func TestHistory_Hydrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	tr := testTransition(t, model.ModeNotDetermined, model.ModeRing)
	require.NoError(t, p.Append(tr))

	h := NewHistory(p, 0)
	defer h.Close()

	require.NoError(t, h.Hydrate())
	require.NoError(t, h.Hydrate())
	assert.Equal(t, []model.Transition{tr}, h.All())
}

func TestHistory_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	h := NewHistory(p, 0)
	defer h.Close()

	require.NoError(t, h.Add(testTransition(t, model.ModeSilent, model.ModeRing)))
	require.NoError(t, h.Clear())

	assert.Equal(t, 0, h.Count())
	persisted, err := p.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestHistory_Subscribe(t *testing.T) {
	h := NewHistory(nil, 1)

	ch := h.Subscribe()
	require.NoError(t, h.Add(testTransition(t, model.ModeNotDetermined, model.ModeSilent)))
	require.NoError(t, h.Add(testTransition(t, model.ModeSilent, model.ModeRing)))

	assert.Equal(t, ChangeEvent{Type: ChangeTypeAdd, Count: 1, Source: "test"}, <-ch)
	assert.Equal(t, ChangeEvent{Type: ChangeTypeAdd, Count: 1, Source: "test"}, <-ch)
	assert.Equal(t, ChangeEvent{Type: ChangeTypePrune, Count: 1}, <-ch)

	h.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	other := h.Subscribe()
	require.NoError(t, h.Close())
	_, ok = <-other
	assert.False(t, ok)
}

func TestHistory_Closed(t *testing.T) {
	h := NewHistory(nil, 0)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.Add(testTransition(t, model.ModeSilent, model.ModeRing)), ErrHistoryClosed)
	assert.ErrorIs(t, h.Clear(), ErrHistoryClosed)

	_, ok := <-h.Subscribe()
	assert.False(t, ok)
}
