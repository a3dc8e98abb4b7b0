// Package convo drives the listen -> transcribe -> route -> speak loop and
// owns the conversation history. All session state lives on the Controller;
// nothing is process-global.
package convo

import (
	"context"
	"strings"
	"sync"
	"time"

	log "log/slog"
)

const (
	exitPhrase = "goodbye"
	farewell   = "Goodbye! Have a great day."
)

// Recorder captures one utterance into an audio file. A false return means
// no speech was detected or the device failed; it never errors.
type Recorder interface {
	Record(ctx context.Context, dest string, wait, phraseLimit time.Duration) bool
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Agent interface {
	Ask(ctx context.Context, query string) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Options struct {
	// CaptureFile is the transient capture artifact, overwritten per turn.
	CaptureFile string

	// Wait bounds the block for speech onset; PhraseLimit bounds the
	// recording once speech started.
	Wait        time.Duration
	PhraseLimit time.Duration

	// RetryPause is slept before retrying after a failed capture or an
	// unusable transcript.
	RetryPause time.Duration

	// OnUpdate receives a history snapshot after every append and after
	// Clear. Called without internal locks held.
	OnUpdate func([]Turn)

	// OnListening fires once per session when listening starts, for the
	// earcon.
	OnListening func()
}

type Controller struct {
	rec   Recorder
	stt   Transcriber
	agent Agent
	tts   Speaker
	opts  Options

	mu        sync.Mutex
	listening bool
	cancel    context.CancelFunc
	history   []Turn
	onUpdate  func([]Turn)
}

func NewController(rec Recorder, stt Transcriber, agent Agent, tts Speaker, opts Options) *Controller {
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.PhraseLimit <= 0 {
		opts.PhraseLimit = 10 * time.Second
	}
	if opts.RetryPause <= 0 {
		opts.RetryPause = time.Second
	}
	return &Controller{rec: rec, stt: stt, agent: agent, tts: tts, opts: opts, onUpdate: opts.OnUpdate}
}

// SetOnUpdate installs the history snapshot hook after construction; the
// presentation layer and the controller reference each other.
func (c *Controller) SetOnUpdate(fn func([]Turn)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Start begins a listening session. It is idempotent: starting while a
// session is active (or still winding down) reports false and does not spawn
// a second loop.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listening {
		return false
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	c.listening = true
	c.cancel = cancel

	go c.run(sessionCtx)

	log.Info("listening started", "exit_phrase", exitPhrase)
	return true
}

// Stop ends the session. The flag is polled at iteration boundaries and the
// session context is cancelled so in-flight calls return promptly. Stopping
// while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Clear empties the conversation history in any state.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()

	log.Info("conversation cleared")
	c.emit()
}

// Listening reports whether a session loop is active.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// History returns a snapshot copy of the conversation.
func (c *Controller) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.history...)
}

func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.listening = false
		cancel := c.cancel
		c.cancel = nil
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		log.Info("listening stopped")
	}()

	if c.opts.OnListening != nil {
		c.opts.OnListening()
	}

	for ctx.Err() == nil {
		if !c.iterate(ctx) {
			return
		}
	}
}

// iterate runs one loop body. It reports whether the loop should continue.
func (c *Controller) iterate(ctx context.Context) bool {
	if !c.rec.Record(ctx, c.opts.CaptureFile, c.opts.Wait, c.opts.PhraseLimit) {
		return c.pause(ctx)
	}

	text, err := c.stt.Transcribe(ctx, c.opts.CaptureFile)
	if !usableTranscript(text, err) {
		log.Info("transcript unusable, skipping turn", "err", err)
		return c.pause(ctx)
	}

	log.Info("user says", "text", text)

	if strings.Contains(strings.ToLower(text), exitPhrase) {
		c.append(Turn{Role: RoleUser, Content: text})
		c.append(Turn{Role: RoleAssistant, Content: farewell})
		c.emit()
		return false
	}

	c.append(Turn{Role: RoleUser, Content: text})
	c.emit()

	reply, err := c.agent.Ask(ctx, text)
	if err != nil {
		// Fatal to the session. Roll the user turn back so the history
		// never shows a question without its answer.
		log.Error("agent failed, stopping session", "err", err)
		c.dropLast()
		c.emit()
		return false
	}

	c.append(Turn{Role: RoleAssistant, Content: reply})
	c.emit()

	if err := c.tts.Speak(ctx, reply); err != nil {
		// Best-effort: the text already reached the history.
		log.Error("speech playback failed", "err", err)
	}

	return true
}

// usableTranscript applies the transcription acceptance policy: a failed
// call, an empty or whitespace-only transcript, or one carrying the literal
// "Error" marker is skipped rather than turned into a conversation turn.
func usableTranscript(text string, err error) bool {
	if err != nil {
		return false
	}
	if strings.TrimSpace(text) == "" {
		return false
	}
	return !strings.Contains(text, "Error")
}

func (c *Controller) pause(ctx context.Context) bool {
	select {
	case <-time.After(c.opts.RetryPause):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) append(t Turn) {
	c.mu.Lock()
	c.history = append(c.history, t)
	c.mu.Unlock()
}

func (c *Controller) dropLast() {
	c.mu.Lock()
	if n := len(c.history); n > 0 {
		c.history = c.history[:n-1]
	}
	c.mu.Unlock()
}

func (c *Controller) emit() {
	c.mu.Lock()
	fn := c.onUpdate
	snapshot := append([]Turn(nil), c.history...)
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}
