package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to SessionStatus
		ok       bool
	}{
		{SessionActive, SessionCompleted, true},
		{SessionActive, SessionCancelled, true},
		{SessionActive, SessionPaused, true},
		{SessionActive, SessionActive, false},
		{SessionPaused, SessionActive, true},
		{SessionPaused, SessionCancelled, true},
		{SessionPaused, SessionCompleted, true},
		{SessionPaused, SessionPaused, false},
		{SessionCompleted, SessionActive, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCancelled, SessionActive, false},
		{SessionCancelled, SessionPaused, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionCancelled.Terminal())
	assert.False(t, SessionActive.Terminal())
	assert.False(t, SessionPaused.Terminal())
	assert.False(t, SessionStatus("BOGUS").Valid())
}
