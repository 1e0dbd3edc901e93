package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Status    StatusConfig    `yaml:"status"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Log       LogConfig       `yaml:"log"`
}

type TransportConfig struct {
	Kind              string        `yaml:"kind"`
	ReconnectInterval string        `yaml:"reconnect_interval"`
	Scratch           ScratchConfig `yaml:"scratch"`
	MQTT              MQTTConfig    `yaml:"mqtt"`
}

type ScratchConfig struct {
	Addr        string `yaml:"addr"`
	DialTimeout string `yaml:"dial_timeout"`
}

type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TopicPrefix    string `yaml:"topic_prefix"`
	EmbeddedBroker string `yaml:"embedded_broker"`
}

type HardwareConfig struct {
	Driver  string       `yaml:"driver"`
	I2CBus  string       `yaml:"i2c_bus"`
	Address int          `yaml:"address"`
	LCD     bool         `yaml:"lcd"`
	IR      IRConfig     `yaml:"ir"`
	Camera  CameraConfig `yaml:"camera"`
}

type IRConfig struct {
	Socket string `yaml:"socket"`
}

type CameraConfig struct {
	Command string `yaml:"command"`
	Dir     string `yaml:"dir"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

type HeartbeatConfig struct {
	Interval string `yaml:"interval"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type MirrorConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Key       string `yaml:"key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default is the configuration used when no file is given: Scratch on
// localhost and the real GrovePi board.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = "scratch"
	}
	if c.Transport.ReconnectInterval == "" {
		c.Transport.ReconnectInterval = "5s"
	}
	if c.Transport.Scratch.Addr == "" {
		c.Transport.Scratch.Addr = "127.0.0.1:42001"
	}
	if c.Transport.Scratch.DialTimeout == "" {
		c.Transport.Scratch.DialTimeout = "5s"
	}
	if c.Transport.MQTT.Broker == "" {
		c.Transport.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
	if c.Transport.MQTT.TopicPrefix == "" {
		c.Transport.MQTT.TopicPrefix = "grovepi"
	}
	if c.Hardware.Driver == "" {
		c.Hardware.Driver = "grovepi"
	}
	if c.Hardware.Address == 0 {
		c.Hardware.Address = 0x04
	}
	if c.Hardware.IR.Socket == "" {
		c.Hardware.IR.Socket = "/var/run/lirc/lircd"
	}
	if c.Hardware.Camera.Command == "" {
		c.Hardware.Camera.Command = "raspistill"
	}
	if c.Hardware.Camera.Dir == "" {
		c.Hardware.Camera.Dir = "/home/pi/Desktop"
	}
	if c.Hardware.Camera.Width == 0 {
		c.Hardware.Camera.Width = 640
	}
	if c.Hardware.Camera.Height == 0 {
		c.Hardware.Camera.Height = 480
	}
	if c.Heartbeat.Interval == "" {
		c.Heartbeat.Interval = "200ms"
	}
	if c.Status.Addr == "" {
		c.Status.Addr = "127.0.0.1:8080"
	}
	if c.Mirror.Key == "" {
		c.Mirror.Key = "grovepi:values"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the enumerated settings. Call it again after overriding
// fields loaded from a file.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case "scratch", "mqtt":
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}

	switch c.Hardware.Driver {
	case "grovepi", "simulated":
	default:
		return fmt.Errorf("unknown hardware driver %q", c.Hardware.Driver)
	}

	if c.Hardware.Address < 0 || c.Hardware.Address > 0x7f {
		return fmt.Errorf("i2c address %#x out of range", c.Hardware.Address)
	}
	return nil
}
