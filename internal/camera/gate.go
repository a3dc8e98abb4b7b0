// Package camera serializes access to the physical camera. The device is
// exclusive: the preview feed and the vision snapshot tool must never hold
// it at the same time.
package camera

import "context"

// Gate is a one-token ownership lock over the camera device.
type Gate struct {
	token chan struct{}
}

func NewGate() *Gate {
	g := &Gate{token: make(chan struct{}, 1)}
	g.token <- struct{}{}
	return g
}

// Acquire blocks until the camera is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case <-g.token:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes ownership without blocking.
func (g *Gate) TryAcquire() bool {
	select {
	case <-g.token:
		return true
	default:
		return false
	}
}

// Release returns ownership. Must be called exactly once per acquisition.
func (g *Gate) Release() {
	select {
	case g.token <- struct{}{}:
	default:
		panic("camera: release without acquire")
	}
}
