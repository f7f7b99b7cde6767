package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownContext_StartsUncancelled(t *testing.T) {
	ctx, cancel := shutdownContext(5 * time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("shutdown context must not start cancelled")
	default:
	}

	deadline, ok := ctx.Deadline()
	require.True(t, ok, "drain must be bounded")
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}
