package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grovepi-bridge/internal/application"
)

func TestHeartbeat_StartsOnce(t *testing.T) {
	live := &application.Liveness{}
	live.Set()
	hb := application.NewHeartbeat(time.Millisecond, live, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.True(t, hb.Start(ctx))
	assert.False(t, hb.Start(ctx))
	assert.False(t, hb.Start(ctx))

	live.Clear()
	select {
	case <-hb.Done():
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop after liveness was cleared")
	}
}

func TestHeartbeat_ExitsOnCancel(t *testing.T) {
	live := &application.Liveness{}
	live.Set()
	hb := application.NewHeartbeat(time.Hour, live, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, hb.Start(ctx))
	cancel()

	select {
	case <-hb.Done():
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop on cancel")
	}
	assert.True(t, live.Running())
}

func TestHeartbeat_NotRunningExitsImmediately(t *testing.T) {
	hb := application.NewHeartbeat(0, &application.Liveness{}, discardLogger())

	require.True(t, hb.Start(context.Background()))

	select {
	case <-hb.Done():
	case <-time.After(time.Second):
		t.Fatal("heartbeat kept running without liveness")
	}
}
