package application

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"grovepi-bridge/internal/domain"
)

// PrefixTable is one category of sensor tokens. Token order is match order.
type PrefixTable struct {
	Category string
	Tokens   []string
}

var (
	AnalogSensors  = PrefixTable{Category: "analog_sensors", Tokens: []string{"analogRead", "rotary", "sound", "light"}}
	DigitalInputs  = PrefixTable{Category: "digital_inputs", Tokens: []string{"button"}}
	DigitalOutputs = PrefixTable{Category: "digital_outputs", Tokens: []string{"led", "relay"}}
	PWMOutputs     = PrefixTable{Category: "pwm", Tokens: []string{"LEDPower", "buzzer", "analogWrite"}}
)

// match returns the first token of t that is a case-insensitive prefix of msg.
func (t PrefixTable) match(msg string) (string, bool) {
	for _, token := range t.Tokens {
		if hasPrefixFold(msg, token) {
			return token, true
		}
	}
	return "", false
}

type rule struct {
	name  string
	match func(msg string) (token string, ok bool)
	parse func(msg, token string) (domain.Command, error)
}

// Router classifies inbound message strings. The first rule whose prefix
// matches decides the command, even when its parameters fail to parse.
type Router struct {
	rules  []rule
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		rules:  defaultRules(),
		logger: logger,
	}
}

// Rules lists rule names in evaluation order.
func (r *Router) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rl := range r.rules {
		names[i] = rl.name
	}
	return names
}

func (r *Router) Classify(msg string) domain.Command {
	for _, rl := range r.rules {
		token, ok := rl.match(msg)
		if !ok {
			continue
		}

		cmd, err := rl.parse(msg, token)
		if err != nil {
			r.logger.Debug("ignoring malformed command", "message", msg, "rule", rl.name, "error", err)
			return unrecognized()
		}
		return cmd
	}

	r.logger.Debug("ignoring unrecognized command", "message", msg)
	return unrecognized()
}

func defaultRules() []rule {
	return []rule{
		exactRule("SETUP", domain.KindSetup),
		exactRule("START", domain.KindStart),

		tableRule(AnalogSensors, func(msg, token string) (domain.Command, error) {
			pin, err := parsePin(msg, msg[len(token):])
			if err != nil {
				return domain.Command{}, err
			}
			return domain.Command{Kind: domain.KindAnalogSensorRead, Pin: pin, Token: token}, nil
		}),
		tableRule(DigitalInputs, func(msg, token string) (domain.Command, error) {
			pin, err := parsePin(msg, msg[len(token):])
			if err != nil {
				return domain.Command{}, err
			}
			return domain.Command{Kind: domain.KindDigitalInputRead, Pin: pin, Token: token}, nil
		}),
		tableRule(DigitalOutputs, func(msg, token string) (domain.Command, error) {
			pin, rest, err := splitPinChar(msg, token)
			if err != nil {
				return domain.Command{}, err
			}
			return domain.Command{Kind: domain.KindDigitalOutputWrite, Pin: pin, Token: token, On: rest == "on"}, nil
		}),
		tableRule(PWMOutputs, func(msg, token string) (domain.Command, error) {
			pin, rest, err := splitPinChar(msg, token)
			if err != nil {
				return domain.Command{}, err
			}
			intensity, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return domain.Command{}, &domain.ParseError{Message: msg, Field: "intensity", Err: err}
			}
			return domain.Command{Kind: domain.KindPWMWrite, Pin: pin, Token: token, Intensity: intensity}, nil
		}),

		pinRule("setInput", domain.KindSetInputMode),
		pinRule("setOutput", domain.KindSetOutputMode),
		pinRule("digitalRead", domain.KindDigitalRead),
		pinRule("digitalWriteHigh", domain.KindDigitalWriteHigh),
		pinRule("digitalWriteLow", domain.KindDigitalWriteLow),
		pinRule("temp", domain.KindTemperatureRead),
		pinRule("humidity", domain.KindHumidityRead),
		pinRule("distance", domain.KindDistanceRead),
		{name: "lcd", match: prefixMatcher("lcd"), parse: parseDisplay},
		// Never matches: the setOutput pin-mode rule above claims every such
		// message first. Older Scratch projects still list it, so it stays.
		pinRule("setOutput", domain.KindAnalogRead),
		equalFoldRule("READ_IR", domain.KindInfraredRead),
		equalFoldRule("TAKE_PICTURE", domain.KindCameraCapture),
	}
}

func exactRule(token string, kind domain.Kind) rule {
	return rule{
		name: token,
		match: func(msg string) (string, bool) {
			return token, msg == token
		},
		parse: func(_, _ string) (domain.Command, error) {
			return domain.Command{Kind: kind}, nil
		},
	}
}

func equalFoldRule(token string, kind domain.Kind) rule {
	return rule{
		name: token,
		match: func(msg string) (string, bool) {
			return token, strings.EqualFold(msg, token)
		},
		parse: func(_, _ string) (domain.Command, error) {
			return domain.Command{Kind: kind}, nil
		},
	}
}

func tableRule(t PrefixTable, parse func(msg, token string) (domain.Command, error)) rule {
	return rule{name: t.Category, match: t.match, parse: parse}
}

func pinRule(token string, kind domain.Kind) rule {
	return rule{
		name:  token,
		match: prefixMatcher(token),
		parse: func(msg, token string) (domain.Command, error) {
			pin, err := parsePin(msg, msg[len(token):])
			if err != nil {
				return domain.Command{}, err
			}
			return domain.Command{Kind: kind, Pin: pin}, nil
		},
	}
}

func prefixMatcher(token string) func(string) (string, bool) {
	return func(msg string) (string, bool) {
		return token, hasPrefixFold(msg, token)
	}
}

func hasPrefixFold(msg, prefix string) bool {
	return len(msg) >= len(prefix) && strings.EqualFold(msg[:len(prefix)], prefix)
}

func parsePin(msg, s string) (int, error) {
	pin, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &domain.ParseError{Message: msg, Field: "pin", Err: err}
	}
	if pin < 0 {
		return 0, &domain.ParseError{Message: msg, Field: "pin", Err: fmt.Errorf("negative pin %d", pin)}
	}
	return pin, nil
}

// splitPinChar reads the single-character pin that follows token and returns
// the rest of the message.
func splitPinChar(msg, token string) (int, string, error) {
	rest := msg[len(token):]
	if rest == "" {
		return 0, "", &domain.ParseError{Message: msg, Field: "pin"}
	}
	pin, err := parsePin(msg, rest[:1])
	if err != nil {
		return 0, "", err
	}
	return pin, rest[1:], nil
}

func parseDisplay(msg, token string) (domain.Command, error) {
	rest := msg[len(token):]
	if len(rest) < 3 {
		return domain.Command{}, &domain.ParseError{Message: msg, Field: "display mode"}
	}

	switch strings.ToLower(rest[:3]) {
	case "col":
		color, err := parseHexColor(msg, rest[3:])
		if err != nil {
			return domain.Command{}, err
		}
		return domain.Command{Kind: domain.KindDisplayColor, Color: color}, nil
	case "txt":
		return domain.Command{Kind: domain.KindDisplayText, Text: rest[3:]}, nil
	default:
		return domain.Command{}, &domain.ParseError{Message: msg, Field: "display mode"}
	}
}

// parseHexColor consumes s in pairs of hex digits, one pair per channel.
// Characters beyond the third pair are ignored.
func parseHexColor(msg, s string) ([3]uint8, error) {
	var color [3]uint8
	for i := range color {
		start := i * 2
		if start >= len(s) {
			return color, &domain.ParseError{Message: msg, Field: "color"}
		}
		end := min(start+2, len(s))
		v, err := strconv.ParseUint(s[start:end], 16, 8)
		if err != nil {
			return color, &domain.ParseError{Message: msg, Field: "color", Err: err}
		}
		color[i] = uint8(v)
	}
	return color, nil
}

func unrecognized() domain.Command {
	return domain.Command{Kind: domain.KindUnrecognized}
}
