package grovepi

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCameraCommand = "raspistill"
	DefaultCameraDir     = "/home/pi/Desktop"
	DefaultCameraWidth   = 640
	DefaultCameraHeight  = 480
)

type CameraConfig struct {
	Command string
	Dir     string
	Width   int
	Height  int
}

// Camera takes stills by running raspistill.
type Camera struct {
	cfg CameraConfig
	now func() time.Time
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCamera(cfg CameraConfig) *Camera {
	if cfg.Command == "" {
		cfg.Command = DefaultCameraCommand
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultCameraDir
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultCameraWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultCameraHeight
	}
	return &Camera{cfg: cfg, now: time.Now, run: runCommand}
}

// Capture writes img_<timestamp>.jpg into the configured directory and
// returns its path.
func (c *Camera) Capture(ctx context.Context) (string, error) {
	path := filepath.Join(c.cfg.Dir, "img_"+imageStamp(c.now())+".jpg")
	args := []string{
		"-o", path,
		"-w", strconv.Itoa(c.cfg.Width),
		"-h", strconv.Itoa(c.cfg.Height),
		"-t", "1",
	}

	out, err := c.run(ctx, c.cfg.Command, args...)
	if err != nil {
		return "", fmt.Errorf("running %s: %w: %s", c.cfg.Command, err, strings.TrimSpace(string(out)))
	}
	return path, nil
}

// imageStamp formats t like "2015-06-29_10:11:12.123456".
func imageStamp(t time.Time) string {
	return strings.ReplaceAll(t.Format("2006-01-02 15:04:05.000000"), " ", "_")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
