package grovepi

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"grovepi-bridge/internal/domain"
	"grovepi-bridge/internal/infra"
)

// DefaultAddress is the GrovePi firmware's I2C address.
const DefaultAddress = 0x04

// Firmware command bytes.
const (
	cmdDigitalRead  = 1
	cmdDigitalWrite = 2
	cmdAnalogRead   = 3
	cmdAnalogWrite  = 4
	cmdPinMode      = 5
	cmdUltrasonic   = 7
	cmdDHT          = 40
)

// Every command block is written to this register.
const commandRegister = 1

const (
	readDelay       = 100 * time.Millisecond
	ultrasonicDelay = 60 * time.Millisecond
	dhtDelay        = 600 * time.Millisecond
)

// DHTBlue is the DHT11 module shipped with the starter kit.
const DHTBlue = 0

// Bus is the part of an I2C bus the drivers need. periph's i2c.Bus satisfies it.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Board drives the GrovePi firmware. A command and its reply form one
// transaction; the settle delay between them runs under the lock.
type Board struct {
	bus   Bus
	addr  uint16
	retry infra.RetryConfig
	sleep func(time.Duration)

	mu sync.Mutex
}

type BoardOption func(*Board)

func WithRetryConfig(cfg infra.RetryConfig) BoardOption {
	return func(b *Board) { b.retry = cfg }
}

// WithDelay replaces time.Sleep for the settle delays.
func WithDelay(sleep func(time.Duration)) BoardOption {
	return func(b *Board) { b.sleep = sleep }
}

func NewBoard(bus Bus, addr uint16, opts ...BoardOption) *Board {
	if addr == 0 {
		addr = DefaultAddress
	}
	b := &Board{
		bus:   bus,
		addr:  addr,
		retry: infra.DefaultRetryConfig(),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.retry.Retryable == nil {
		b.retry.Retryable = transientBusError
	}
	return b
}

func (b *Board) SetPinMode(ctx context.Context, pin int, mode domain.PinMode) error {
	var v byte
	if mode == domain.PinModeOutput {
		v = 1
	}
	return b.transact(ctx, "pin mode", []byte{cmdPinMode, byte(pin), v, 0}, 0, nil)
}

func (b *Board) DigitalWrite(ctx context.Context, pin int, value bool) error {
	var v byte
	if value {
		v = 1
	}
	return b.transact(ctx, "digital write", []byte{cmdDigitalWrite, byte(pin), v, 0}, 0, nil)
}

func (b *Board) AnalogWrite(ctx context.Context, pin int, intensity int) error {
	return b.transact(ctx, "analog write", []byte{cmdAnalogWrite, byte(pin), byte(intensity), 0}, 0, nil)
}

func (b *Board) DigitalRead(ctx context.Context, pin int) (bool, error) {
	reply := make([]byte, 1)
	if err := b.transact(ctx, "digital read", []byte{cmdDigitalRead, byte(pin), 0, 0}, readDelay, reply); err != nil {
		return false, err
	}
	return reply[0] != 0, nil
}

func (b *Board) AnalogRead(ctx context.Context, pin int) (int, error) {
	reply := make([]byte, 3)
	if err := b.transact(ctx, "analog read", []byte{cmdAnalogRead, byte(pin), 0, 0}, readDelay, reply); err != nil {
		return 0, err
	}
	return int(reply[1])<<8 | int(reply[2]), nil
}

// UltrasonicRead returns the ranger distance in centimetres.
func (b *Board) UltrasonicRead(ctx context.Context, pin int) (int, error) {
	reply := make([]byte, 3)
	if err := b.transact(ctx, "ultrasonic read", []byte{cmdUltrasonic, byte(pin), 0, 0}, ultrasonicDelay, reply); err != nil {
		return 0, err
	}
	return int(reply[1])<<8 | int(reply[2]), nil
}

// DHT reads a temperature and humidity sensor of the given module type.
// Values are rounded to two decimals.
func (b *Board) DHT(ctx context.Context, pin int, module byte) (float64, float64, error) {
	reply := make([]byte, 9)
	if err := b.transact(ctx, "dht read", []byte{cmdDHT, byte(pin), module, 0}, dhtDelay, reply); err != nil {
		return 0, 0, err
	}

	t := math.Float32frombits(binary.LittleEndian.Uint32(reply[1:5]))
	h := math.Float32frombits(binary.LittleEndian.Uint32(reply[5:9]))
	if math.IsNaN(float64(t)) || math.IsNaN(float64(h)) {
		return 0, 0, fmt.Errorf("dht read on pin %d: sensor returned NaN", pin)
	}
	return round2(float64(t)), round2(float64(h)), nil
}

// transact writes one command block and, when reply is not nil, reads the
// answer from the command register after delay.
func (b *Board) transact(ctx context.Context, op string, block []byte, delay time.Duration, reply []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := append([]byte{commandRegister}, block...)
	err := infra.WithRetry(ctx, b.retry, func() error {
		if err := b.bus.Tx(b.addr, w, nil); err != nil {
			return err
		}
		if reply == nil {
			return nil
		}
		b.sleep(delay)
		return b.read(reply)
	})
	if err != nil {
		return fmt.Errorf("%s on pin %d: %w", op, block[1], err)
	}
	return nil
}

// permanentBusErrors will not go away on a retry: nothing answers at the
// address, or the bus itself is gone.
var permanentBusErrors = []syscall.Errno{syscall.ENXIO, syscall.ENODEV, syscall.ENOENT, syscall.EBADF}

// transientBusError reports whether err is worth another transaction. Bus
// drivers do not always wrap the errno, so its text is matched as well.
func transientBusError(err error) bool {
	if errors.Is(err, os.ErrClosed) {
		return false
	}
	msg := err.Error()
	for _, errno := range permanentBusErrors {
		if errors.Is(err, errno) || strings.Contains(msg, errno.Error()) {
			return false
		}
	}
	return true
}

// read fetches a reply. Single-byte replies are a plain read; longer ones
// are read back from the command register.
func (b *Board) read(reply []byte) error {
	if len(reply) == 1 {
		return b.bus.Tx(b.addr, nil, reply)
	}
	return b.bus.Tx(b.addr, []byte{commandRegister}, reply)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
