package scratch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"grovepi-bridge/internal/domain"
)

// MaxFrameSize bounds a single inbound frame. Scratch never sends anything
// close to this; a larger header means the stream is out of sync.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("scratch frame too large")

// ReadFrame reads one length-prefixed frame body.
func ReadFrame(r io.Reader) (string, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// AppendFrame appends body with its 4-byte big-endian length prefix to dst.
func AppendFrame(dst []byte, body string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...)
}

func EncodeBroadcast(name string) string {
	return "broadcast " + quote(name)
}

// EncodeSensorUpdate renders values as a sensor-update body. Keys are sorted
// so the same values always encode to the same bytes.
func EncodeSensorUpdate(values domain.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("sensor-update")
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(quote(k))
		b.WriteByte(' ')
		b.WriteString(encodeValue(values[k]))
	}
	return b.String()
}

func encodeValue(v any) string {
	switch v := v.(type) {
	case string:
		return quote(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseMessage decodes a frame body. Unknown verbs are returned with only
// their type set so the caller can skip them.
func ParseMessage(body string) (domain.Message, error) {
	words, err := tokenize(body)
	if err != nil {
		return domain.Message{}, err
	}
	if len(words) == 0 {
		return domain.Message{}, fmt.Errorf("empty frame")
	}

	msg := domain.Message{Type: domain.MessageType(strings.ToLower(words[0]))}

	switch msg.Type {
	case domain.MessageBroadcast:
		if len(words) < 2 {
			return domain.Message{}, fmt.Errorf("broadcast without a name")
		}
		msg.Broadcast = words[1]

	case domain.MessageSensorUpdate:
		msg.Sensors = make(map[string]string, (len(words)-1)/2)
		for i := 1; i+1 < len(words); i += 2 {
			msg.Sensors[words[i]] = words[i+1]
		}
	}

	return msg, nil
}

// tokenize splits on spaces, honouring double-quoted strings where "" stands
// for a literal quote.
func tokenize(body string) ([]string, error) {
	var words []string
	i := 0
	for i < len(body) {
		switch body[i] {
		case ' ', '\t', '\r', '\n':
			i++

		case '"':
			var b strings.Builder
			i++
			for {
				if i >= len(body) {
					return nil, fmt.Errorf("unterminated string in %q", body)
				}
				if body[i] == '"' {
					if i+1 < len(body) && body[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(body[i])
				i++
			}
			words = append(words, b.String())

		default:
			start := i
			for i < len(body) && !strings.ContainsRune(" \t\r\n", rune(body[i])) {
				i++
			}
			words = append(words, body[start:i])
		}
	}
	return words, nil
}
