package grovepi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"grovepi-bridge/internal/domain"
)

var ErrNoDisplay = errors.New("lcd display not enabled")

type Config struct {
	// Bus is the periph bus name; empty picks the first one found.
	Bus        string
	Address    uint16
	LCD        bool
	LircSocket string
	Camera     CameraConfig
}

// Hardware is the GrovePi kit: the board, the RGB LCD, the IR receiver and
// the Pi camera behind one capability.
type Hardware struct {
	board  *Board
	lcd    *LCD
	ir     *IRReceiver
	camera *Camera
	logger *slog.Logger
	closer io.Closer
}

// Open initialises periph, opens the I2C bus and builds the kit on it.
func Open(cfg Config, logger *slog.Logger) (*Hardware, error) {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialising periph host: %w", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", cfg.Bus, err)
	}
	logger.Info("i2c bus opened", "bus", bus.String(), "address", fmt.Sprintf("%#02x", cfg.Address))

	hw := New(bus, cfg, logger)
	hw.closer = bus
	return hw, nil
}

// New builds the kit on an already open bus.
func New(bus Bus, cfg Config, logger *slog.Logger, opts ...BoardOption) *Hardware {
	hw := &Hardware{
		board:  NewBoard(bus, cfg.Address, opts...),
		ir:     NewIRReceiver(cfg.LircSocket, logger),
		camera: NewCamera(cfg.Camera),
		logger: logger.With("component", "grovepi"),
	}
	if cfg.LCD {
		hw.lcd = NewLCD(bus, nil)
	}
	return hw
}

func (h *Hardware) SetPinMode(ctx context.Context, pin int, mode domain.PinMode) error {
	return h.board.SetPinMode(ctx, pin, mode)
}

func (h *Hardware) AnalogRead(ctx context.Context, pin int) (int, error) {
	return h.board.AnalogRead(ctx, pin)
}

func (h *Hardware) AnalogWrite(ctx context.Context, pin int, intensity int) error {
	return h.board.AnalogWrite(ctx, pin, intensity)
}

func (h *Hardware) DigitalRead(ctx context.Context, pin int) (bool, error) {
	return h.board.DigitalRead(ctx, pin)
}

func (h *Hardware) DigitalWrite(ctx context.Context, pin int, value bool) error {
	return h.board.DigitalWrite(ctx, pin, value)
}

func (h *Hardware) ReadTemperatureHumidity(ctx context.Context, pin int) (float64, float64, error) {
	return h.board.DHT(ctx, pin, DHTBlue)
}

func (h *Hardware) ReadUltrasonicDistance(ctx context.Context, pin int) (float64, error) {
	d, err := h.board.UltrasonicRead(ctx, pin)
	return float64(d), err
}

func (h *Hardware) SetDisplayColor(_ context.Context, r, g, b uint8) error {
	if h.lcd == nil {
		return ErrNoDisplay
	}
	return h.lcd.SetRGB(r, g, b)
}

func (h *Hardware) SetDisplayText(_ context.Context, text string) error {
	if h.lcd == nil {
		return ErrNoDisplay
	}
	return h.lcd.SetText(text)
}

func (h *Hardware) ReadInfraredCode(ctx context.Context) (string, bool, error) {
	return h.ir.NextCode(ctx)
}

func (h *Hardware) CaptureStillImage(ctx context.Context) error {
	path, err := h.camera.Capture(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("picture taken", "path", path)
	return nil
}

func (h *Hardware) Close() error {
	err := h.ir.Close()
	if h.closer != nil {
		err = errors.Join(err, h.closer.Close())
	}
	return err
}
