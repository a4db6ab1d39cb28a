package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStateRoundTrip(t *testing.T) {
	cases := map[byte]State{
		'R': StateRunning,
		'S': StateSleeping,
		'D': StateUninterruptibleWait,
		'W': StatePaging,
		't': StateTraced,
		'T': StateStopped,
		'Z': StateZombie,
		'X': StateDefunct,
		'I': StateIdle,
		'K': StateBlocked,
	}
	for c, want := range cases {
		assert.Equal(t, want, ParseState(c))
		assert.Equal(t, string(c), want.String())
	}
}

func TestParseStateUnknownForUnrecognizedChar(t *testing.T) {
	assert.Equal(t, StateUnknown, ParseState('?'))
	assert.Equal(t, "?", StateUnknown.String())
}

func TestNewSetsIdentityAndDefaultVisibility(t *testing.T) {
	p := New(42)
	assert.Equal(t, 42, p.Id)
	assert.Equal(t, 42, p.Group)
	assert.True(t, p.Show)
	assert.True(t, p.ShowChildren)
}
