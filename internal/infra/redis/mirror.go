package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"grovepi-bridge/internal/domain"
)

const DefaultKey = "grovepi:values"

// UpdatedAtField holds the time of the last update in the mirror hash.
const UpdatedAtField = "updated_at"

// Mirror keeps the last reported value of every sensor in one Redis hash so
// other processes can read the board state without talking to the bridge.
type Mirror struct {
	client *backend.Client
	key    string
	now    func() time.Time
}

func NewMirror(client *backend.Client, key string) *Mirror {
	if key == "" {
		key = DefaultKey
	}
	return &Mirror{client: client, key: key, now: time.Now}
}

// Dial connects to addr and returns a mirror writing to key.
func Dial(ctx context.Context, addr, key string) (*Mirror, error) {
	client := backend.NewClient(&backend.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return NewMirror(client, key), nil
}

func (m *Mirror) Record(ctx context.Context, values domain.Values) error {
	fields := make(map[string]any, len(values)+1)
	for k, v := range values {
		fields[k] = encode(v)
	}
	fields[UpdatedAtField] = m.now().UTC().Format(time.RFC3339Nano)

	if err := m.client.HSet(ctx, m.key, fields).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", m.key, err)
	}
	return nil
}

// Snapshot returns the whole mirror hash.
func (m *Mirror) Snapshot(ctx context.Context) (map[string]string, error) {
	res, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.key, err)
	}
	return res, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

func encode(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
