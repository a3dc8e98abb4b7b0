// Package webcam runs the live preview feed for the UI. It is independent of
// the conversation loop and only shares the camera gate with the vision
// snapshot tool.
package webcam

import (
	"errors"
	"sync"
	"time"

	log "log/slog"

	"github.com/khushiuttamani/ai-assistant/internal/camera"
)

const (
	frameWidth  = 640
	frameHeight = 480
	frameRate   = 30

	// readRetry paces the poll loop while the device is failing, so a dead
	// camera does not spin a core.
	readRetry = 50 * time.Millisecond
)

// frameReader is the slice of camera.Device the feed needs; tests substitute
// a fake.
type frameReader interface {
	ReadJPEG(timeoutSec uint32) ([]byte, error)
	Close()
}

type openFunc func() (frameReader, error)

// Feed polls the camera in the background and keeps the freshest JPEG frame.
// Frame never blocks on the device; when a read fails or the feed is stopped
// it keeps returning the last known-good frame.
type Feed struct {
	gate *camera.Gate
	open openFunc

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	last    []byte
}

// NewFeed builds a preview feed scanning the given device paths.
func NewFeed(devices []string, gate *camera.Gate) *Feed {
	return &Feed{
		gate: gate,
		open: func() (frameReader, error) {
			return openFirst(devices)
		},
	}
}

func openFirst(devices []string) (frameReader, error) {
	for _, path := range devices {
		dev, err := camera.OpenDevice(path, frameWidth, frameHeight)
		if err != nil {
			log.Debug("preview open failed", "device", path, "err", err)
			continue
		}
		// Shallow buffer: we always want the newest frame, not a backlog.
		if err := dev.Stream(1, frameRate); err != nil {
			dev.Close()
			continue
		}
		return dev, nil
	}
	return nil, errors.New("webcam: no camera available")
}

// Start opens the camera and begins polling. Starting a running feed is a
// no-op.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}
	if !f.gate.TryAcquire() {
		return errors.New("webcam: camera busy")
	}

	dev, err := f.open()
	if err != nil {
		f.gate.Release()
		return err
	}

	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	f.running = true

	go f.poll(dev, f.stop, f.done)

	log.Info("webcam preview started")
	return nil
}

func (f *Feed) poll(dev frameReader, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer f.gate.Release()
	defer dev.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		jpg, err := dev.ReadJPEG(1)
		if err != nil {
			// Keep the last good frame; the next read may recover.
			select {
			case <-stop:
				return
			case <-time.After(readRetry):
			}
			continue
		}

		f.mu.Lock()
		f.last = jpg
		f.mu.Unlock()
	}
}

// Stop releases the camera. The last frame stays available. Stopping a
// stopped feed is a no-op.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	stop, done := f.stop, f.done
	f.mu.Unlock()

	close(stop)
	<-done

	log.Info("webcam preview stopped")
}

// Frame returns the freshest frame, or the last known-good frame when the
// feed is stopped or reads are failing. It is nil only before any frame was
// ever captured.
func (f *Feed) Frame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == nil {
		return nil
	}
	out := make([]byte, len(f.last))
	copy(out, f.last)
	return out
}

// FrameJPEG satisfies the vision tool's FrameSource.
func (f *Feed) FrameJPEG() []byte { return f.Frame() }

// Running reports whether the feed currently owns the camera.
func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
