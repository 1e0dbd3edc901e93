// Package simulated provides an in-memory GrovePi kit for running the bridge
// without hardware.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"grovepi-bridge/internal/domain"
)

// Board keeps pin state in memory. Digital writes are read back on the same
// pin, analog inputs default to a fixed value per pin and can be overridden.
type Board struct {
	logger *slog.Logger

	mu          sync.Mutex
	modes       map[int]domain.PinMode
	digital     map[int]bool
	analog      map[int]int
	pwm         map[int]int
	temperature float64
	humidity    float64
	distance    float64
	color       [3]uint8
	text        string
	irCodes     []string
	pictures    int
	calls       []string
}

// MaxCalls bounds the call history returned by Calls; older calls are dropped.
const MaxCalls = 256

func NewBoard(logger *slog.Logger) *Board {
	return &Board{
		logger:      logger.With("component", "simulated"),
		modes:       make(map[int]domain.PinMode),
		digital:     make(map[int]bool),
		analog:      make(map[int]int),
		pwm:         make(map[int]int),
		temperature: 21.5,
		humidity:    45,
		distance:    100,
	}
}

func (b *Board) record(format string, args ...any) {
	call := fmt.Sprintf(format, args...)
	if len(b.calls) == MaxCalls {
		copy(b.calls, b.calls[1:])
		b.calls = b.calls[:MaxCalls-1]
	}
	b.calls = append(b.calls, call)
	b.logger.Debug("hardware call", "call", call)
}

func (b *Board) SetPinMode(_ context.Context, pin int, mode domain.PinMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetPinMode(%d,%s)", pin, mode)
	b.modes[pin] = mode
	return nil
}

// AnalogRead returns the override for pin or 100 times the pin number.
func (b *Board) AnalogRead(_ context.Context, pin int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AnalogRead(%d)", pin)
	if v, ok := b.analog[pin]; ok {
		return v, nil
	}
	return (pin * 100) % 1024, nil
}

func (b *Board) AnalogWrite(_ context.Context, pin int, intensity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AnalogWrite(%d,%d)", pin, intensity)
	b.pwm[pin] = intensity
	return nil
}

func (b *Board) DigitalRead(_ context.Context, pin int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DigitalRead(%d)", pin)
	return b.digital[pin], nil
}

func (b *Board) DigitalWrite(_ context.Context, pin int, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DigitalWrite(%d,%t)", pin, value)
	b.digital[pin] = value
	return nil
}

func (b *Board) ReadTemperatureHumidity(_ context.Context, pin int) (float64, float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ReadTemperatureHumidity(%d)", pin)
	return b.temperature, b.humidity, nil
}

func (b *Board) ReadUltrasonicDistance(_ context.Context, pin int) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ReadUltrasonicDistance(%d)", pin)
	return b.distance, nil
}

func (b *Board) SetDisplayColor(_ context.Context, r, g, bl uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetDisplayColor(%d,%d,%d)", r, g, bl)
	b.color = [3]uint8{r, g, bl}
	return nil
}

func (b *Board) SetDisplayText(_ context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetDisplayText(%s)", text)
	b.text = text
	return nil
}

func (b *Board) ReadInfraredCode(_ context.Context) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ReadInfraredCode()")
	if len(b.irCodes) == 0 {
		return "", false, nil
	}
	code := b.irCodes[0]
	b.irCodes = b.irCodes[1:]
	return code, true, nil
}

func (b *Board) CaptureStillImage(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CaptureStillImage()")
	b.pictures++
	return nil
}

func (b *Board) SetAnalog(pin, value int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analog[pin] = value
}

func (b *Board) SetDigital(pin int, value bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.digital[pin] = value
}

func (b *Board) SetClimate(temperature, humidity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.temperature, b.humidity = temperature, humidity
}

func (b *Board) SetDistance(d float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.distance = d
}

// PressIR queues a remote button press.
func (b *Board) PressIR(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.irCodes = append(b.irCodes, code)
}

// Calls returns the last MaxCalls hardware calls in order, formatted like
// "DigitalWrite(1,true)".
func (b *Board) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Board) PinMode(pin int) (domain.PinMode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mode, ok := b.modes[pin]
	return mode, ok
}

func (b *Board) Display() ([3]uint8, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.color, b.text
}

func (b *Board) PWM(pin int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pwm[pin]
}

func (b *Board) Pictures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pictures
}

// Close satisfies the same lifecycle as the real kit. There is nothing to release.
func (b *Board) Close() error {
	b.logger.Debug("simulated board closed")
	return nil
}
