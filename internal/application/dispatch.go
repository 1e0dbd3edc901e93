package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"grovepi-bridge/internal/domain"
)

// DefaultRecordTimeout bounds one mirror write so a dead recorder cannot hold
// up the message loop.
const DefaultRecordTimeout = time.Second

// Dispatcher performs the hardware side of a classified command and reports
// at most one value update per command.
type Dispatcher struct {
	hw       Hardware
	out      Outbound
	recorder ValueRecorder
	observer Observer
	logger   *slog.Logger
}

func NewDispatcher(
	hw Hardware,
	out Outbound,
	recorder ValueRecorder,
	observer Observer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		hw:       hw,
		out:      out,
		recorder: recorder,
		observer: observer,
		logger:   logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.Command) error {
	values, err := d.execute(ctx, cmd)
	d.observer.Dispatched(cmd.Kind, err)
	if err != nil {
		return fmt.Errorf("executing %s: %w", cmd.Kind, err)
	}

	if len(values) == 0 {
		return nil
	}

	d.logger.Debug("reporting values", "kind", cmd.Kind, "values", values)

	if err := d.out.BroadcastValues(ctx, values); err != nil {
		return fmt.Errorf("reporting %s: %w", cmd.Kind, err)
	}

	recordCtx, cancel := context.WithTimeout(ctx, DefaultRecordTimeout)
	defer cancel()
	if err := d.recorder.Record(recordCtx, values); err != nil {
		d.logger.Warn("recording values", "kind", cmd.Kind, "error", err)
	}

	return nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd domain.Command) (domain.Values, error) {
	switch cmd.Kind {
	case domain.KindAnalogSensorRead:
		v, err := d.hw.AnalogRead(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{cmd.Token: v}, nil

	case domain.KindAnalogRead:
		v, err := d.hw.AnalogRead(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{domain.KeyAnalogRead: v}, nil

	case domain.KindDigitalRead:
		v, err := d.hw.DigitalRead(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{domain.KeyDigitalRead: boolToInt(v)}, nil

	case domain.KindDigitalInputRead:
		if err := d.hw.SetPinMode(ctx, cmd.Pin, domain.PinModeInput); err != nil {
			return nil, err
		}
		v, err := d.hw.DigitalRead(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{cmd.Token + strconv.Itoa(cmd.Pin): boolToInt(v)}, nil

	case domain.KindSetInputMode:
		return nil, d.hw.SetPinMode(ctx, cmd.Pin, domain.PinModeInput)

	case domain.KindSetOutputMode:
		return nil, d.hw.SetPinMode(ctx, cmd.Pin, domain.PinModeOutput)

	case domain.KindDigitalWriteHigh:
		return nil, d.hw.DigitalWrite(ctx, cmd.Pin, true)

	case domain.KindDigitalWriteLow:
		return nil, d.hw.DigitalWrite(ctx, cmd.Pin, false)

	case domain.KindDigitalOutputWrite:
		if err := d.hw.SetPinMode(ctx, cmd.Pin, domain.PinModeOutput); err != nil {
			return nil, err
		}
		return nil, d.hw.DigitalWrite(ctx, cmd.Pin, cmd.On)

	case domain.KindPWMWrite:
		if err := d.hw.SetPinMode(ctx, cmd.Pin, domain.PinModeOutput); err != nil {
			return nil, err
		}
		return nil, d.hw.AnalogWrite(ctx, cmd.Pin, cmd.Intensity)

	case domain.KindTemperatureRead:
		temp, _, err := d.hw.ReadTemperatureHumidity(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{domain.KeyTemperature: temp}, nil

	case domain.KindHumidityRead:
		_, humidity, err := d.hw.ReadTemperatureHumidity(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{domain.KeyHumidity: humidity}, nil

	case domain.KindDistanceRead:
		dist, err := d.hw.ReadUltrasonicDistance(ctx, cmd.Pin)
		if err != nil {
			return nil, err
		}
		return domain.Values{domain.KeyDistance: dist}, nil

	case domain.KindDisplayColor:
		return nil, d.hw.SetDisplayColor(ctx, cmd.Color[0], cmd.Color[1], cmd.Color[2])

	case domain.KindDisplayText:
		return nil, d.hw.SetDisplayText(ctx, cmd.Text)

	case domain.KindInfraredRead:
		code, ok, err := d.hw.ReadInfraredCode(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			code = ""
		}
		return domain.Values{domain.KeyInfrared: code}, nil

	case domain.KindCameraCapture:
		if err := d.hw.CaptureStillImage(ctx); err != nil {
			d.logger.Warn("taking picture", "error", err)
			return domain.Values{domain.KeyCamera: domain.CameraError}, nil
		}
		return domain.Values{domain.KeyCamera: domain.CameraTaken}, nil

	case domain.KindSetup, domain.KindStart, domain.KindUnrecognized:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
