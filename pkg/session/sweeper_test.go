package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_StartStop(t *testing.T) {
	store := NewStore(time.Minute, time.Hour)
	sweeper := NewSweeper(store, time.Minute)

	require.NoError(t, sweeper.Start())
	assert.True(t, sweeper.IsRunning())

	err := sweeper.Start()
	assert.Error(t, err, "double start should be rejected")

	sweeper.Stop()
	assert.False(t, sweeper.IsRunning())

	// Stop after stop is a no-op
	sweeper.Stop()
}
