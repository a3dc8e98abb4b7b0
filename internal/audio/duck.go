package audio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	log "log/slog"
)

var (
	sinkInputRe = regexp.MustCompile(`^Sink Input #(\d+)`)
	volumeRe    = regexp.MustCompile(`(\d+)\s*%`)
)

// Ducker lowers the volume of other PulseAudio playback streams while the
// microphone is open, so music does not bleed into the capture, and restores
// the original volumes afterwards. Everything is best-effort: on systems
// without pactl it degrades to a no-op error.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	duckPercent int
	original    map[int]int // sink input id -> volume %

	// pactl wrappers, swappable in tests.
	list func(ctx context.Context) (map[int]int, error)
	set  func(ctx context.Context, id, percent int) error
}

func NewDucker(duckPercent int) *Ducker {
	if duckPercent < 0 {
		duckPercent = 0
	}
	if duckPercent > 100 {
		duckPercent = 100
	}
	return &Ducker{
		duckPercent: duckPercent,
		original:    make(map[int]int),
		list:        listSinkInputs,
		set:         setSinkInputVolume,
	}
}

// DuckOthers drops every playback stream to the configured percentage.
func (d *Ducker) DuckOthers(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.list(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	d.original = make(map[int]int, len(streams))
	for id, vol := range streams {
		if vol <= d.duckPercent {
			continue
		}
		if err := d.set(ctx, id, d.duckPercent); err != nil {
			continue
		}
		d.original[id] = vol
	}

	d.active = true
	return nil
}

// Restore puts every ducked stream back to its original volume. It runs from
// deferred calls whose session context is usually already cancelled, so the
// restore commands are detached from it; skipping them would leave the whole
// desktop quiet at the duck level with the original volumes lost.
func (d *Ducker) Restore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for id, vol := range d.original {
		if err := d.set(ctx, id, vol); err != nil {
			log.Warn("volume restore failed", "sink_input", id, "volume", vol, "err", err)
		}
	}
	d.original = make(map[int]int)
	d.active = false
}

func listSinkInputs(ctx context.Context) (map[int]int, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, err
	}

	streams := make(map[int]int)
	var current = -1
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if m := sinkInputRe.FindStringSubmatch(line); m != nil {
			current, _ = strconv.Atoi(m[1])
			continue
		}
		if current >= 0 && strings.HasPrefix(line, "Volume:") {
			if m := volumeRe.FindStringSubmatch(line); m != nil {
				vol, _ := strconv.Atoi(m[1])
				streams[current] = vol
			}
			current = -1
		}
	}
	return streams, nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume",
		strconv.Itoa(id), strconv.Itoa(percent)+"%").Run()
}
