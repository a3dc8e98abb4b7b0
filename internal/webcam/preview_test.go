package webcam

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khushiuttamani/ai-assistant/internal/camera"
)

// fakeDevice serves frames from a script; a nil entry simulates a failed
// read. After the script it keeps failing.
type fakeDevice struct {
	mu     sync.Mutex
	frames [][]byte
	reads  int
	closed bool
}

func (f *fakeDevice) ReadJPEG(timeoutSec uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.frames) == 0 {
		return nil, errors.New("read failed")
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	if frame == nil {
		return nil, errors.New("read failed")
	}
	return frame, nil
}

func (f *fakeDevice) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeDevice) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeDevice) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func newTestFeed(dev *fakeDevice, gate *camera.Gate) *Feed {
	return &Feed{
		gate: gate,
		open: func() (frameReader, error) { return dev, nil },
	}
}

func TestFrameNilBeforeFirstCapture(t *testing.T) {
	feed := newTestFeed(&fakeDevice{}, camera.NewGate())
	assert.Nil(t, feed.Frame(), "no frame before the feed ever captured one")
}

func TestFrameKeepsLastGoodOnReadFailure(t *testing.T) {
	dev := &fakeDevice{frames: [][]byte{[]byte("frame-1")}}
	feed := newTestFeed(dev, camera.NewGate())

	require.NoError(t, feed.Start())
	require.Eventually(t, func() bool { return feed.Frame() != nil },
		time.Second, time.Millisecond)

	// Reads fail from now on; the last good frame survives.
	for i := 0; i < 5; i++ {
		assert.Equal(t, []byte("frame-1"), feed.Frame())
	}

	feed.Stop()
	assert.Equal(t, []byte("frame-1"), feed.Frame(), "stopped feed still serves the last frame")
	assert.True(t, dev.isClosed())
}

func TestFailingReadsArePaced(t *testing.T) {
	dev := &fakeDevice{} // every read fails immediately
	feed := newTestFeed(dev, camera.NewGate())

	require.NoError(t, feed.Start())
	time.Sleep(150 * time.Millisecond)
	feed.Stop()

	assert.LessOrEqual(t, dev.readCount(), 10,
		"a dead camera must not spin the poll loop")
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	dev := &fakeDevice{}
	feed := newTestFeed(dev, camera.NewGate())

	require.NoError(t, feed.Start())
	require.NoError(t, feed.Start(), "second start is a no-op")
	assert.True(t, feed.Running())

	feed.Stop()
	feed.Stop() // stopping twice is fine
	assert.False(t, feed.Running())
}

func TestStopReleasesCameraGate(t *testing.T) {
	gate := camera.NewGate()
	feed := newTestFeed(&fakeDevice{}, gate)

	require.NoError(t, feed.Start())
	assert.False(t, gate.TryAcquire(), "running feed owns the gate")

	feed.Stop()
	require.True(t, gate.TryAcquire(), "stop must return camera ownership")
	gate.Release()
}

func TestStartFailsWhenGateHeld(t *testing.T) {
	gate := camera.NewGate()
	require.True(t, gate.TryAcquire())
	defer gate.Release()

	feed := newTestFeed(&fakeDevice{}, gate)
	assert.Error(t, feed.Start())
}
