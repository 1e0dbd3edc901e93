package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
)

func newTestSession(dialer *fakeDialer, sleeper *recordingSleeper) *application.Session {
	return application.NewSession(dialer, 0, discardLogger(), application.WithSleeper(sleeper.Sleep))
}

func TestSession_ConnectAnnouncesReady(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	session := newTestSession(dialer, &recordingSleeper{})

	require.NoError(t, session.Connect(context.Background()))

	assert.Equal(t, application.StateConnected, session.State())
	assert.Equal(t, []string{domain.EventReady}, conn.Events())
}

func TestSession_ConnectFailureStaysDisconnected(t *testing.T) {
	dialer := &fakeDialer{failFirst: 1}
	session := newTestSession(dialer, &recordingSleeper{})

	err := session.Connect(context.Background())

	require.Error(t, err)
	assert.Equal(t, application.StateDisconnected, session.State())
	_, err = session.ReceiveNext(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSession_ReadyFailureClosesConn(t *testing.T) {
	conn := newFakeConn()
	conn.sendErr = errors.New("broken pipe")
	session := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, &recordingSleeper{})

	require.Error(t, session.Connect(context.Background()))

	assert.True(t, conn.Closed())
	assert.Equal(t, application.StateDisconnected, session.State())
}

func TestSession_ReconnectConverges(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{failFirst: 2, conns: []*fakeConn{conn}}
	sleeper := &recordingSleeper{}
	session := newTestSession(dialer, sleeper)

	require.NoError(t, session.Reconnect(context.Background()))

	assert.Equal(t, 3, dialer.Dials())
	assert.Equal(t, []time.Duration{
		application.DefaultReconnectInterval,
		application.DefaultReconnectInterval,
		application.DefaultReconnectInterval,
	}, sleeper.Slept())
	assert.Equal(t, []string{domain.EventReady}, conn.Events())
	assert.Equal(t, application.StateConnected, session.State())
	assert.Zero(t, session.Retries())
}

func TestSession_ReconnectStopsOnCancel(t *testing.T) {
	dialer := &fakeDialer{failFirst: 1000}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	sleep := func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ctx.Err()
	}
	session := application.NewSession(dialer, time.Second, discardLogger(), application.WithSleeper(sleep))

	err := session.Reconnect(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, dialer.Dials())
}

func TestSession_ReceiveSkipsSensorUpdates(t *testing.T) {
	conn := newFakeConn()
	session := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, &recordingSleeper{})
	require.NoError(t, session.Connect(context.Background()))

	conn.inbox <- domain.Message{Type: domain.MessageSensorUpdate, Sensors: map[string]string{"temp": "21"}}
	conn.push("temp7")

	msg, err := session.ReceiveNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "temp7", msg)
}

func TestSession_DropsConnectionOnReceiveError(t *testing.T) {
	conn := newFakeConn()
	session := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, &recordingSleeper{})
	require.NoError(t, session.Connect(context.Background()))

	close(conn.inbox)

	_, err := session.ReceiveNext(context.Background())
	assert.True(t, domain.IsConnectionError(err))
	assert.Equal(t, application.StateDisconnected, session.State())
	assert.True(t, conn.Closed())

	err = session.BroadcastEvent(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSession_BroadcastValues(t *testing.T) {
	conn := newFakeConn()
	session := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, &recordingSleeper{})
	require.NoError(t, session.Connect(context.Background()))

	require.NoError(t, session.BroadcastValues(context.Background(), domain.Values{"temp": 21.5}))

	assert.Equal(t, []domain.Values{{"temp": 21.5}}, conn.Updates())
}

func TestSession_ReceiveHonorsContext(t *testing.T) {
	conn := newFakeConn()
	session := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, &recordingSleeper{})
	require.NoError(t, session.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := session.ReceiveNext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, application.StateConnected, session.State())
}
