package dialog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionStartsEmpty(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("s-1", now)

	assert.Equal(t, StageWelcome, s.Stage)
	assert.Equal(t, now, s.CreatedAt)
	assert.Empty(t, s.History)
	assert.True(t, s.Stack.Empty())
	assert.Equal(t, RequiredFields(), s.Data.Missing())
}

func TestCollectedDataAbsentDiffersFromEmpty(t *testing.T) {
	var d CollectedData
	require.NoError(t, d.Set(FieldContact, ""))

	v, ok := d.Get(FieldContact)
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.False(t, d.Present(FieldDates))

	d.Unset(FieldContact)
	assert.False(t, d.Present(FieldContact))
	assert.Error(t, d.Set(Field("room"), "101"))
}

func TestCollectedDataCompleteInAnyOrder(t *testing.T) {
	orders := [][]Field{
		{FieldDates, FieldGuests, FieldContact},
		{FieldContact, FieldDates, FieldGuests},
		{FieldGuests, FieldContact, FieldDates},
	}
	for _, order := range orders {
		var d CollectedData
		for i, f := range order {
			assert.False(t, d.Complete())
			require.NoError(t, d.Set(f, "x"))
			if i < len(order)-1 {
				assert.False(t, d.Complete())
			}
		}
		assert.True(t, d.Complete())
		assert.Empty(t, d.Missing())
	}
}

func TestCollectedDataJSON(t *testing.T) {
	var d CollectedData
	require.NoError(t, d.Set(FieldDates, "20250101"))

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dates":"20250101","guests":null,"contact":null}`, string(raw))
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	s := NewSession("s", time.Now())
	s.Stage = StageCollecting
	require.NoError(t, s.Data.Set(FieldDates, "20250101"))
	s.Save()

	require.NoError(t, s.Data.Set(FieldGuests, "2"))
	s.Stage = StageWelcome

	require.True(t, s.Restore())
	assert.Equal(t, StageCollecting, s.Stage)
	assert.True(t, s.Data.Present(FieldDates))
	assert.False(t, s.Data.Present(FieldGuests), "saved frame must not see later edits")
}

func TestSaveRestoreNestedLIFO(t *testing.T) {
	s := NewSession("s", time.Now())

	s.Stage = StageCollecting
	require.NoError(t, s.Data.Set(FieldDates, "20250101"))
	s.Save()
	first := Frame{Stage: s.Stage, Data: s.Data}

	s.Stage = StageConfirming
	require.NoError(t, s.Data.Set(FieldGuests, "3"))
	require.NoError(t, s.Data.Set(FieldContact, "+79101234567"))
	s.Save()
	second := Frame{Stage: s.Stage, Data: s.Data}

	s.Stage = StageFailed
	s.Data.Clear()

	require.True(t, s.Restore())
	assert.Equal(t, second, Frame{Stage: s.Stage, Data: s.Data})
	require.True(t, s.Restore())
	assert.Equal(t, first, Frame{Stage: s.Stage, Data: s.Data})
	assert.False(t, s.Restore())
}

func TestRestoreEmptyStackIsNoop(t *testing.T) {
	s := NewSession("s", time.Now())
	s.Stage = StageCollecting
	require.NoError(t, s.Data.Set(FieldGuests, "2"))
	before := *s.Clone()

	assert.False(t, s.Restore())
	assert.Equal(t, before.Stage, s.Stage)
	assert.Equal(t, before.Data, s.Data)
}

func TestResetClearsEverything(t *testing.T) {
	s := NewSession("s", time.Now())
	s.AppendTurn(time.Now(), "hi")
	s.Stage = StageFailed
	require.NoError(t, s.Data.Set(FieldDates, "20250101"))
	s.Save()

	s.Reset()
	assert.Equal(t, StageWelcome, s.Stage)
	assert.Len(t, s.Data.Missing(), 3)
	assert.True(t, s.Stack.Empty())
	assert.Len(t, s.History, 1)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession("s", time.Now())
	idx := s.AppendTurn(time.Now(), "hello")
	s.Save()

	c := s.Clone()
	s.Answer(idx, "hi there")
	s.Stack.Clear()

	assert.Empty(t, c.History[0].AssistantText)
	assert.Equal(t, 1, c.Stack.Len())
}

func TestRecentTurns(t *testing.T) {
	s := NewSession("s", time.Now())
	for _, text := range []string{"a", "b", "c", "d"} {
		s.AppendTurn(time.Now(), text)
	}
	recent := s.RecentTurns(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "b", recent[0].UserText)
	assert.Nil(t, s.RecentTurns(0))
}

func TestStageValid(t *testing.T) {
	for _, st := range Stages() {
		assert.True(t, st.Valid())
	}
	assert.False(t, Stage("booking").Valid())
	assert.True(t, StageCompleted.Terminal())
	assert.False(t, StageConfirming.Terminal())
}
