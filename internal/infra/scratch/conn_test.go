package scratch_test

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grovepi-bridge/internal/domain"
	"grovepi-bridge/internal/infra/scratch"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listen starts a loopback server and returns its address and a channel that
// yields the accepted connection.
func listen(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()
	return ln.Addr().String(), accepted
}

func dial(t *testing.T) (*scratch.Conn, net.Conn) {
	t.Helper()
	addr, accepted := listen(t)

	conn, err := scratch.NewDialer(addr, time.Second, discardLogger()).Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case server := <-accepted:
		t.Cleanup(func() { server.Close() })
		return conn.(*scratch.Conn), server
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
		return nil, nil
	}
}

func TestConn_ReceiveDecodesFrames(t *testing.T) {
	conn, server := dial(t)

	_, err := server.Write(scratch.AppendFrame(nil, `broadcast "temp7"`))
	require.NoError(t, err)
	_, err = server.Write(scratch.AppendFrame(nil, `sensor-update "x" 1`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Message{Type: domain.MessageBroadcast, Broadcast: "temp7"}, msg)

	msg, err = conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSensorUpdate, msg.Type)
	assert.Equal(t, map[string]string{"x": "1"}, msg.Sensors)
}

func TestConn_SkipsMalformedFrames(t *testing.T) {
	conn, server := dial(t)

	_, err := server.Write(scratch.AppendFrame(nil, `broadcast "unterminated`))
	require.NoError(t, err)
	_, err = server.Write(scratch.AppendFrame(nil, `broadcast "SETUP"`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SETUP", msg.Broadcast)
}

func TestConn_WritesFrames(t *testing.T) {
	conn, server := dial(t)

	require.NoError(t, conn.Broadcast(context.Background(), domain.EventReady))
	require.NoError(t, conn.SensorUpdate(context.Background(), domain.Values{"temp": 21.5}))

	r := bufio.NewReader(server)
	body, err := scratch.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, `broadcast "READY"`, body)

	body, err = scratch.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, `sensor-update "temp" 21.5`, body)
}

func TestConn_RemoteCloseIsConnectionDropped(t *testing.T) {
	conn, server := dial(t)

	require.NoError(t, server.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := conn.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrConnectionDropped)
	assert.True(t, domain.IsConnectionError(err))
}

func TestConn_UseAfterClose(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.Close())

	_, err := conn.Receive(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.ErrorIs(t, conn.Broadcast(context.Background(), "x"), domain.ErrNotConnected)
}

func TestConn_ReceiveHonorsContext(t *testing.T) {
	conn, _ := dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = scratch.NewDialer(addr, time.Second, discardLogger()).Dial(context.Background())
	assert.Error(t, err)
}
