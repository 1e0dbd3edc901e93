package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
)

const (
	DefaultTopicPrefix    = "grovepi"
	DefaultConnectTimeout = 5 * time.Second

	qos = 1
)

type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	ConnectTimeout time.Duration
}

// Topics is the topic tree under one prefix.
type Topics struct {
	InBroadcast     string
	InSensorUpdate  string
	OutBroadcast    string
	OutSensorUpdate string
}

func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		InBroadcast:     prefix + "/in/broadcast",
		InSensorUpdate:  prefix + "/in/sensor-update",
		OutBroadcast:    prefix + "/out/broadcast",
		OutSensorUpdate: prefix + "/out/sensor-update",
	}
}

// Dialer opens paho sessions. Auto reconnect stays off: the bridge session
// owns reconnects.
type Dialer struct {
	opts   Options
	topics Topics
	logger *slog.Logger
}

func NewDialer(opts Options, logger *slog.Logger) (*Dialer, error) {
	if opts.Broker == "" {
		return nil, errors.New("broker URL is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	return &Dialer{
		opts:   opts,
		topics: TopicsFor(opts.TopicPrefix),
		logger: logger.With(slog.String("component", "mqtt")),
	}, nil
}

func (d *Dialer) Name() string {
	return "mqtt"
}

func (d *Dialer) Topics() Topics {
	return d.topics
}

func (d *Dialer) Dial(ctx context.Context) (application.Conn, error) {
	clientID := d.opts.ClientID
	if clientID == "" {
		clientID = "grovepi-bridge-" + uuid.NewString()
	}

	conn := &Conn{
		topics:         d.topics,
		logger:         d.logger.With(slog.String("clientID", clientID)),
		publishTimeout: d.opts.ConnectTimeout,
		ready:          make(chan struct{}, 1),
		lost:           make(chan struct{}),
		closed:         make(chan struct{}),
	}

	co := paho.NewClientOptions()
	co.AddBroker(d.opts.Broker)
	co.SetClientID(clientID)
	if d.opts.Username != "" {
		co.SetUsername(d.opts.Username)
	}
	if d.opts.Password != "" {
		co.SetPassword(d.opts.Password)
	}
	co.SetAutoReconnect(false)
	co.SetConnectRetry(false)
	co.SetConnectTimeout(d.opts.ConnectTimeout)
	co.SetKeepAlive(30 * time.Second)
	// Handlers run on paho's single router goroutine, in arrival order. They
	// only append to the pending queue and never block it.
	co.SetOrderMatters(true)
	co.SetConnectionLostHandler(conn.onConnectionLost)

	conn.client = paho.NewClient(co)

	if err := wait(ctx, conn.client.Connect()); err != nil {
		conn.client.Disconnect(0)
		return nil, fmt.Errorf("connecting to %s: %w", d.opts.Broker, err)
	}

	subs := map[string]paho.MessageHandler{
		d.topics.InBroadcast:    conn.onBroadcast,
		d.topics.InSensorUpdate: conn.onSensorUpdate,
	}
	for topic, handler := range subs {
		if err := wait(ctx, conn.client.Subscribe(topic, qos, handler)); err != nil {
			conn.client.Disconnect(0)
			return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		conn.logger.Debug("subscribed", slog.String("topic", topic))
	}

	conn.logger.Info("connected to MQTT broker", slog.String("broker", d.opts.Broker))
	return conn, nil
}

// Conn is one paho client session. Inbound messages arrive on paho's router
// goroutine and are queued for Receive without bound, so a slow bridge never
// stalls acknowledgements on the same connection.
type Conn struct {
	client         paho.Client
	topics         Topics
	logger         *slog.Logger
	publishTimeout time.Duration

	mu      sync.Mutex
	pending []domain.Message
	ready   chan struct{}

	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *Conn) onConnectionLost(_ paho.Client, err error) {
	c.lostOnce.Do(func() {
		c.lostErr = err
		close(c.lost)
	})
	c.logger.Warn("connection to MQTT broker lost", slog.Any("error", err))
}

func (c *Conn) onBroadcast(_ paho.Client, m paho.Message) {
	c.enqueue(domain.Message{Type: domain.MessageBroadcast, Broadcast: string(m.Payload())})
}

func (c *Conn) onSensorUpdate(_ paho.Client, m paho.Message) {
	var payload map[string]any
	if err := json.Unmarshal(m.Payload(), &payload); err != nil {
		c.logger.Debug("skipping malformed sensor update", slog.String("topic", m.Topic()), slog.Any("error", err))
		return
	}

	sensors := make(map[string]string, len(payload))
	for k, v := range payload {
		sensors[k] = fmt.Sprint(v)
	}
	c.enqueue(domain.Message{Type: domain.MessageSensorUpdate, Sensors: sensors})
}

func (c *Conn) enqueue(msg domain.Message) {
	c.mu.Lock()
	c.pending = append(c.pending, msg)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *Conn) dequeue() (domain.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return domain.Message{}, false
	}
	msg := c.pending[0]
	c.pending[0] = domain.Message{}
	c.pending = c.pending[1:]
	return msg, true
}

// Receive returns queued messages even after the link is lost; the loss is
// reported once the queue is empty.
func (c *Conn) Receive(ctx context.Context) (domain.Message, error) {
	for {
		select {
		case <-c.closed:
			return domain.Message{}, domain.ErrNotConnected
		default:
		}

		if msg, ok := c.dequeue(); ok {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return domain.Message{}, ctx.Err()
		case <-c.ready:
		case <-c.lost:
			if msg, ok := c.dequeue(); ok {
				return msg, nil
			}
			return domain.Message{}, fmt.Errorf("%w: %v", domain.ErrConnectionDropped, c.lostErr)
		case <-c.closed:
			return domain.Message{}, domain.ErrNotConnected
		}
	}
}

func (c *Conn) Broadcast(ctx context.Context, name string) error {
	return c.publish(ctx, c.topics.OutBroadcast, []byte(name))
}

func (c *Conn) SensorUpdate(ctx context.Context, values domain.Values) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding sensor update: %w", err)
	}
	return c.publish(ctx, c.topics.OutSensorUpdate, payload)
}

func (c *Conn) publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-c.closed:
		return domain.ErrNotConnected
	case <-c.lost:
		return fmt.Errorf("%w: %v", domain.ErrConnectionDropped, c.lostErr)
	default:
	}

	pubCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	if err := wait(pubCtx, c.client.Publish(topic, qos, false, payload)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		// An unacknowledged publish or a closed client both mean the link is gone.
		if errors.Is(err, context.DeadlineExceeded) || !c.client.IsConnectionOpen() {
			return fmt.Errorf("%w: publishing to %s: %v", domain.ErrConnectionDropped, topic, err)
		}
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.client.Disconnect(250)
	})
	return nil
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
