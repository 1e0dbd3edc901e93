package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHardware struct {
	mu    sync.Mutex
	calls []string

	analog      map[int]int
	digital     map[int]bool
	temperature float64
	humidity    float64
	distance    float64
	irCode      string
	cameraErr   error
	failWith    error
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{
		analog:  make(map[int]int),
		digital: make(map[int]bool),
	}
}

func (h *fakeHardware) record(format string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
	return h.failWith
}

func (h *fakeHardware) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *fakeHardware) SetPinMode(_ context.Context, pin int, mode domain.PinMode) error {
	return h.record("SetPinMode(%d,%s)", pin, mode)
}

func (h *fakeHardware) AnalogRead(_ context.Context, pin int) (int, error) {
	err := h.record("AnalogRead(%d)", pin)
	return h.analog[pin], err
}

func (h *fakeHardware) AnalogWrite(_ context.Context, pin int, intensity int) error {
	return h.record("AnalogWrite(%d,%d)", pin, intensity)
}

func (h *fakeHardware) DigitalRead(_ context.Context, pin int) (bool, error) {
	err := h.record("DigitalRead(%d)", pin)
	return h.digital[pin], err
}

func (h *fakeHardware) DigitalWrite(_ context.Context, pin int, value bool) error {
	return h.record("DigitalWrite(%d,%t)", pin, value)
}

func (h *fakeHardware) ReadTemperatureHumidity(_ context.Context, pin int) (float64, float64, error) {
	err := h.record("ReadTemperatureHumidity(%d)", pin)
	return h.temperature, h.humidity, err
}

func (h *fakeHardware) ReadUltrasonicDistance(_ context.Context, pin int) (float64, error) {
	err := h.record("ReadUltrasonicDistance(%d)", pin)
	return h.distance, err
}

func (h *fakeHardware) SetDisplayColor(_ context.Context, r, g, b uint8) error {
	return h.record("SetDisplayColor(%d,%d,%d)", r, g, b)
}

func (h *fakeHardware) SetDisplayText(_ context.Context, text string) error {
	return h.record("SetDisplayText(%s)", text)
}

func (h *fakeHardware) ReadInfraredCode(_ context.Context) (string, bool, error) {
	err := h.record("ReadInfraredCode()")
	return h.irCode, h.irCode != "", err
}

func (h *fakeHardware) CaptureStillImage(_ context.Context) error {
	if err := h.record("CaptureStillImage()"); err != nil {
		return err
	}
	return h.cameraErr
}

type fakeOutbound struct {
	mu      sync.Mutex
	events  []string
	updates []domain.Values
	err     error
}

func (o *fakeOutbound) BroadcastEvent(_ context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, name)
	return o.err
}

func (o *fakeOutbound) BroadcastValues(_ context.Context, values domain.Values) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, values)
	return o.err
}

type recordingRecorder struct {
	recorded  []domain.Values
	err       error
	hang      bool
	deadlines []bool
}

func (r *recordingRecorder) Record(ctx context.Context, values domain.Values) error {
	r.recorded = append(r.recorded, values)
	_, ok := ctx.Deadline()
	r.deadlines = append(r.deadlines, ok)
	if r.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.err
}

// fakeConn delivers frames pushed into inbox. Closing inbox simulates the
// remote side going away.
type fakeConn struct {
	inbox chan domain.Message

	mu      sync.Mutex
	events  []string
	updates []domain.Values
	sendErr error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan domain.Message, 16)}
}

func (c *fakeConn) push(text string) {
	c.inbox <- domain.Message{Type: domain.MessageBroadcast, Broadcast: text}
}

func (c *fakeConn) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case msg, ok := <-c.inbox:
		if !ok {
			return domain.Message{}, domain.ErrConnectionDropped
		}
		return msg, nil
	}
}

func (c *fakeConn) Broadcast(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, name)
	return nil
}

func (c *fakeConn) SensorUpdate(_ context.Context, values domain.Values) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.updates = append(c.updates, values)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeConn) Updates() []domain.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Values(nil), c.updates...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu        sync.Mutex
	failFirst int
	dials     int
	conns     []*fakeConn
}

func (d *fakeDialer) Name() string { return "fake" }

func (d *fakeDialer) Dial(_ context.Context) (application.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

func (s *recordingSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}
