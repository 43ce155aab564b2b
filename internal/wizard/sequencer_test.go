package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookCounter struct {
	scrolls int
	exits   int
}

func newTestSequencer(policy ExitPolicy) (*Sequencer, *hookCounter) {
	h := &hookCounter{}
	return NewSequencer(StandardFlow, policy, func() { h.scrolls++ }, func() { h.exits++ }), h
}

func TestSequencer_AdvanceStopsAtLastStep(t *testing.T) {
	s, h := newTestSequencer(ExitToHost)
	assert.Equal(t, 1, s.Current())

	for i := 2; i <= s.Total(); i++ {
		require.Equal(t, MoveForward, s.Advance())
		require.Equal(t, i, s.Current())
	}
	assert.Equal(t, MoveNone, s.Advance())
	assert.Equal(t, s.Total(), s.Current())
	assert.Equal(t, s.Total()-1, h.scrolls, "no scroll when nothing moved")
}

func TestSequencer_RetreatExitPolicy(t *testing.T) {
	s, h := newTestSequencer(ExitToHost)
	assert.Equal(t, MoveExit, s.Retreat())
	assert.Equal(t, 1, s.Current())
	assert.Equal(t, 1, h.exits)
	assert.Zero(t, h.scrolls)

	s, h = newTestSequencer(StayOnFirst)
	assert.Equal(t, MoveNone, s.Retreat())
	assert.Equal(t, 1, s.Current())
	assert.Zero(t, h.exits)

	s.Advance()
	assert.Equal(t, MoveBackward, s.Retreat())
	assert.Equal(t, 1, s.Current())
	assert.Equal(t, 2, h.scrolls)
}

func TestSequencer_JumpToClamps(t *testing.T) {
	s, h := newTestSequencer(ExitToHost)

	s.JumpTo(7)
	assert.Equal(t, 7, s.Current())
	s.JumpTo(99)
	assert.Equal(t, 13, s.Current())
	s.JumpTo(-4)
	assert.Equal(t, 1, s.Current())
	assert.Equal(t, 3, h.scrolls)
}

func TestSequencer_NilHooks(t *testing.T) {
	s := NewSequencer(CompactFlow, "", nil, nil)
	assert.Equal(t, MoveExit, s.Retreat())
	assert.Equal(t, MoveForward, s.Advance())
}

func TestParseExitPolicy(t *testing.T) {
	p, err := ParseExitPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ExitToHost, p)

	p, err = ParseExitPolicy("stay")
	require.NoError(t, err)
	assert.Equal(t, StayOnFirst, p)

	_, err = ParseExitPolicy("close")
	assert.Error(t, err)
}
