package grovepi

import (
	"context"
	"time"
)

func SetCameraRunner(c *Camera, run func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.run = run
}

func SetCameraClock(c *Camera, now func() time.Time) {
	c.now = now
}
