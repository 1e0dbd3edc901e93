package application

import (
	"context"

	"grovepi-bridge/internal/domain"
)

// Hardware is the board capability the dispatcher drives. Calls are
// synchronous and expected to return quickly.
type Hardware interface {
	SetPinMode(ctx context.Context, pin int, mode domain.PinMode) error
	AnalogRead(ctx context.Context, pin int) (int, error)
	AnalogWrite(ctx context.Context, pin int, intensity int) error
	DigitalRead(ctx context.Context, pin int) (bool, error)
	DigitalWrite(ctx context.Context, pin int, value bool) error
	ReadTemperatureHumidity(ctx context.Context, pin int) (temperature float64, humidity float64, err error)
	ReadUltrasonicDistance(ctx context.Context, pin int) (float64, error)
	SetDisplayColor(ctx context.Context, r, g, b uint8) error
	SetDisplayText(ctx context.Context, text string) error
	// ReadInfraredCode never blocks; ok is false when no code is pending.
	ReadInfraredCode(ctx context.Context) (code string, ok bool, err error)
	CaptureStillImage(ctx context.Context) error
}
