package grovepi

import (
	"fmt"
	"sync"
	"time"
)

const (
	DisplayRGBAddr  = 0x62
	DisplayTextAddr = 0x3e
)

const (
	lcdColumns = 16
	lcdRows    = 2

	lcdCommandReg = 0x80
	lcdDataReg    = 0x40

	lcdClear       = 0x01
	lcdDisplayOn   = 0x08 | 0x04
	lcdTwoLines    = 0x28
	lcdSecondRow   = 0xc0
	lcdCommandWait = 50 * time.Millisecond
)

// LCD drives the Grove RGB backlight display.
type LCD struct {
	bus   Bus
	sleep func(time.Duration)

	mu sync.Mutex
}

func NewLCD(bus Bus, sleep func(time.Duration)) *LCD {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &LCD{bus: bus, sleep: sleep}
}

func (l *LCD) SetRGB(r, g, b uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, pair := range [][2]byte{
		{0x00, 0x00},
		{0x01, 0x00},
		{0x08, 0xaa},
		{0x04, r},
		{0x03, g},
		{0x02, b},
	} {
		if err := l.bus.Tx(DisplayRGBAddr, pair[:], nil); err != nil {
			return fmt.Errorf("setting backlight: %w", err)
		}
	}
	return nil
}

// SetText clears the display and writes text over both rows. A newline or a
// full row moves to the second row; anything beyond it is dropped.
func (l *LCD) SetText(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.command(lcdClear); err != nil {
		return err
	}
	l.sleep(lcdCommandWait)
	if err := l.command(lcdDisplayOn); err != nil {
		return err
	}
	if err := l.command(lcdTwoLines); err != nil {
		return err
	}
	l.sleep(lcdCommandWait)

	count, row := 0, 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' || count == lcdColumns {
			count = 0
			row++
			if row == lcdRows {
				break
			}
			if err := l.command(lcdSecondRow); err != nil {
				return err
			}
			if c == '\n' {
				continue
			}
		}
		count++
		if err := l.bus.Tx(DisplayTextAddr, []byte{lcdDataReg, c}, nil); err != nil {
			return fmt.Errorf("writing display text: %w", err)
		}
	}
	return nil
}

func (l *LCD) command(cmd byte) error {
	if err := l.bus.Tx(DisplayTextAddr, []byte{lcdCommandReg, cmd}, nil); err != nil {
		return fmt.Errorf("display command %#x: %w", cmd, err)
	}
	return nil
}
