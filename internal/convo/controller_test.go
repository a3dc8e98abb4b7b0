package convo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sttResult struct {
	text string
	err  error
}

// fakeRecorder replays a script of capture outcomes. Once the script is
// exhausted it blocks until the session context is cancelled, like a mic
// waiting for speech that never comes.
type fakeRecorder struct {
	script chan bool
}

func newFakeRecorder(outcomes ...bool) *fakeRecorder {
	f := &fakeRecorder{script: make(chan bool, len(outcomes))}
	for _, ok := range outcomes {
		f.script <- ok
	}
	return f
}

func (f *fakeRecorder) Record(ctx context.Context, dest string, wait, limit time.Duration) bool {
	select {
	case ok := <-f.script:
		return ok
	case <-ctx.Done():
		return false
	}
}

type fakeTranscriber struct {
	script chan sttResult
}

func newFakeTranscriber(results ...sttResult) *fakeTranscriber {
	f := &fakeTranscriber{script: make(chan sttResult, len(results))}
	for _, r := range results {
		f.script <- r
	}
	return f
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	select {
	case r := <-f.script:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fakeAgent struct {
	mu      sync.Mutex
	queries []string
	reply   string
	err     error
}

func (f *fakeAgent) Ask(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAgent) asked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	err    error
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSpeaker) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

type snapshotLog struct {
	mu    sync.Mutex
	snaps [][]Turn
}

func (s *snapshotLog) record(turns []Turn) {
	s.mu.Lock()
	s.snaps = append(s.snaps, turns)
	s.mu.Unlock()
}

func (s *snapshotLog) all() [][]Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Turn(nil), s.snaps...)
}

func testOptions(snaps *snapshotLog) Options {
	opts := Options{
		CaptureFile: "/tmp/convo_test.wav",
		Wait:        time.Second,
		PhraseLimit: time.Second,
		RetryPause:  time.Millisecond,
	}
	if snaps != nil {
		opts.OnUpdate = snaps.record
	}
	return opts
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Listening() },
		2*time.Second, 5*time.Millisecond, "controller should return to idle")
}

func TestConversationTurnEndToEnd(t *testing.T) {
	rec := newFakeRecorder(true, true)
	tr := newFakeTranscriber(
		sttResult{text: "What is the weather today"},
		sttResult{text: "goodbye"},
	)
	ag := &fakeAgent{reply: "I don't have live weather access"}
	sp := &fakeSpeaker{}
	snaps := &snapshotLog{}

	c := NewController(rec, tr, ag, sp, testOptions(snaps))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	hist := c.History()
	require.Len(t, hist, 4)
	assert.Equal(t, Turn{Role: RoleUser, Content: "What is the weather today"}, hist[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "I don't have live weather access"}, hist[1])
	assert.Equal(t, RoleUser, hist[2].Role)
	assert.Equal(t, Turn{Role: RoleAssistant, Content: farewell}, hist[3])

	assert.Equal(t, []string{"What is the weather today"}, ag.asked())
	assert.Equal(t, []string{"I don't have live weather access"}, sp.said())

	// The UI sees the user turn before the reply exists.
	all := snaps.all()
	require.NotEmpty(t, all)
	assert.Len(t, all[0], 1)
	assert.Equal(t, RoleUser, all[0][0].Role)
}

func TestEmptyTranscriptSkipsTurn(t *testing.T) {
	rec := newFakeRecorder(true, true)
	tr := newFakeTranscriber(
		sttResult{text: "   "},
		sttResult{text: "goodbye"},
	)
	ag := &fakeAgent{reply: "unused"}
	sp := &fakeSpeaker{}

	c := NewController(rec, tr, ag, sp, testOptions(nil))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	hist := c.History()
	require.Len(t, hist, 2, "the blank transcript must not become a turn")
	assert.Equal(t, Turn{Role: RoleAssistant, Content: farewell}, hist[1])
	assert.Empty(t, ag.asked())
}

func TestErrorMarkerTranscriptSkipsTurn(t *testing.T) {
	rec := newFakeRecorder(true, true)
	tr := newFakeTranscriber(
		sttResult{text: "Error: Audio file not found."},
		sttResult{text: "goodbye"},
	)
	ag := &fakeAgent{reply: "unused"}
	sp := &fakeSpeaker{}

	c := NewController(rec, tr, ag, sp, testOptions(nil))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	assert.Len(t, c.History(), 2)
	assert.Empty(t, ag.asked())
}

func TestRecordFailureRetriesWithoutHistoryMutation(t *testing.T) {
	rec := newFakeRecorder(false, false, true)
	tr := newFakeTranscriber(sttResult{text: "goodbye"})
	ag := &fakeAgent{}
	sp := &fakeSpeaker{}
	snaps := &snapshotLog{}

	c := NewController(rec, tr, ag, sp, testOptions(snaps))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	hist := c.History()
	require.Len(t, hist, 2)
	// Only the final snapshot was emitted; failed captures emit nothing.
	require.Len(t, snaps.all(), 1)
}

func TestExitPhraseVariants(t *testing.T) {
	for _, transcript := range []string{"GOODBYE", "Goodbye!", "say goodbye now"} {
		t.Run(transcript, func(t *testing.T) {
			rec := newFakeRecorder(true)
			tr := newFakeTranscriber(sttResult{text: transcript})
			ag := &fakeAgent{reply: "unused"}
			sp := &fakeSpeaker{}

			c := NewController(rec, tr, ag, sp, testOptions(nil))
			require.True(t, c.Start(context.Background()))
			waitIdle(t, c)

			hist := c.History()
			require.Len(t, hist, 2)
			assert.Equal(t, Turn{Role: RoleUser, Content: transcript}, hist[0])
			assert.Equal(t, Turn{Role: RoleAssistant, Content: farewell}, hist[1])
			assert.Empty(t, ag.asked(), "the exit phrase never reaches the agent")
			assert.Empty(t, sp.said(), "the farewell is not spoken")
		})
	}
}

func TestGoodbyteDoesNotTerminate(t *testing.T) {
	rec := newFakeRecorder(true, true)
	tr := newFakeTranscriber(
		sttResult{text: "goodbyte"},
		sttResult{text: "goodbye"},
	)
	ag := &fakeAgent{reply: "a goodbyte is not a farewell"}
	sp := &fakeSpeaker{}

	c := NewController(rec, tr, ag, sp, testOptions(nil))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	hist := c.History()
	require.Len(t, hist, 4, "goodbyte must be answered as a normal turn")
	assert.Equal(t, "goodbyte", hist[0].Content)
	assert.Equal(t, []string{"goodbyte"}, ag.asked())
}

func TestStartWhileListeningIsNoop(t *testing.T) {
	rec := newFakeRecorder() // blocks: the session idles in Record
	tr := newFakeTranscriber()
	c := NewController(rec, tr, &fakeAgent{}, &fakeSpeaker{}, testOptions(nil))

	require.True(t, c.Start(context.Background()))
	assert.False(t, c.Start(context.Background()), "second start must not spawn a second loop")

	c.Stop()
	waitIdle(t, c)
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	c := NewController(newFakeRecorder(), newFakeTranscriber(), &fakeAgent{}, &fakeSpeaker{}, testOptions(nil))
	c.Stop()
	assert.False(t, c.Listening())
}

func TestClearEmptiesHistoryInAnyState(t *testing.T) {
	rec := newFakeRecorder(true)
	tr := newFakeTranscriber(sttResult{text: "goodbye"})
	snaps := &snapshotLog{}

	c := NewController(rec, tr, &fakeAgent{}, &fakeSpeaker{}, testOptions(snaps))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)
	require.NotEmpty(t, c.History())

	c.Clear()
	assert.Empty(t, c.History())

	all := snaps.all()
	assert.Empty(t, all[len(all)-1], "clear emits an empty snapshot")

	// Clearing an already-empty history is fine too.
	c.Clear()
	assert.Empty(t, c.History())
}

func TestAgentErrorAbortsSessionWithoutPartialTurn(t *testing.T) {
	rec := newFakeRecorder(true)
	tr := newFakeTranscriber(sttResult{text: "hello there"})
	ag := &fakeAgent{err: errors.New("upstream exploded")}
	sp := &fakeSpeaker{}

	c := NewController(rec, tr, ag, sp, testOptions(nil))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	assert.Empty(t, c.History(), "the lone user turn is rolled back")
	assert.Empty(t, sp.said())

	// A manual restart is required and possible.
	assert.True(t, c.Start(context.Background()))
	c.Stop()
	waitIdle(t, c)
}

func TestSpeakerFailureDoesNotAbort(t *testing.T) {
	rec := newFakeRecorder(true, true)
	tr := newFakeTranscriber(
		sttResult{text: "tell me a joke"},
		sttResult{text: "goodbye"},
	)
	ag := &fakeAgent{reply: "no"}
	sp := &fakeSpeaker{err: errors.New("aplay missing")}

	c := NewController(rec, tr, ag, sp, testOptions(nil))
	require.True(t, c.Start(context.Background()))
	waitIdle(t, c)

	hist := c.History()
	require.Len(t, hist, 4, "a failed spoken reply keeps the loop alive")
	assert.Zero(t, len(hist)%2)
}

func TestUsableTranscript(t *testing.T) {
	cases := []struct {
		name string
		text string
		err  error
		want bool
	}{
		{"plain text", "hello", nil, true},
		{"empty", "", nil, false},
		{"whitespace", " \t\n", nil, false},
		{"error marker", "Error: API Key not found.", nil, false},
		{"failed call", "anything", errors.New("boom"), false},
		{"lowercase error word ok", "an error occurred yesterday", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usableTranscript(tc.text, tc.err))
		})
	}
}
