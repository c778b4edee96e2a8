package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestController(mic Microphone, api Assistant, player Player, events EventSink) *Controller {
	return NewController(mic, api, player, events, Config{
		Capture: CaptureConfig{SampleRate: 16000, FrameSize: 4},
		Encode: func(chunks [][]byte, _ int) ([]byte, error) {
			var out []byte
			for _, c := range chunks {
				out = append(out, c...)
			}
			return append([]byte("WAV:"), out...), nil
		},
	})
}

func TestFullCycleWithVoiceReply(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("aa"), []byte("bb"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	api := &fakeAssistant{
		askResp: &Exchange{
			Transcript: "turn on the lights",
			Reply:      "Done.",
			Audio:      []byte("mpeg-bytes"),
		},
	}
	handle := newFakeHandle(nil)
	player := &fakePlayer{handles: []*fakeHandle{handle}}
	events := &recordingSink{}
	c := newTestController(mic, api, player, events)

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	capture.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	waitForState(t, c, Idle)

	st := c.Snapshot()
	if st.Transcript != "turn on the lights" {
		t.Fatalf("transcript = %q", st.Transcript)
	}
	if st.Reply != "Done." {
		t.Fatalf("reply = %q", st.Reply)
	}
	if got := string(api.lastPayload); got != "WAV:aabb" {
		t.Fatalf("payload = %q, chunks must be finalized in arrival order", got)
	}
	if handle.startCalls != 1 {
		t.Fatalf("playback started %d times", handle.startCalls)
	}
	if handle.closeCalls != 1 {
		t.Fatalf("playback released %d times, want exactly once", handle.closeCalls)
	}

	wantStates := []State{Recording, Processing, Playing, Idle}
	states := events.states()
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v", states)
	}
	for i, want := range wantStates {
		if states[i] != want {
			t.Fatalf("states[%d] = %v, want %v", i, states[i], want)
		}
	}
}

func TestTranscriptOnlyResponseEndsIdle(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("x"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	api := &fakeAssistant{askResp: &Exchange{Transcript: "hello"}}
	player := &fakePlayer{}
	events := &recordingSink{}
	c := newTestController(mic, api, player, events)

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	capture.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	waitForState(t, c, Idle)

	st := c.Snapshot()
	if st.Transcript != "hello" {
		t.Fatalf("transcript = %q", st.Transcript)
	}
	if st.Reply != "" {
		t.Fatalf("reply should stay absent, got %q", st.Reply)
	}
	if player.prepareCalls != 0 {
		t.Fatalf("no playback expected")
	}
	for _, s := range events.states() {
		if s == Playing {
			t.Fatalf("playing state must not be entered")
		}
	}
}

func TestPressWhileRecordingIsNoOp(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("x"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	c := newTestController(mic, &fakeAssistant{}, &fakePlayer{}, &recordingSink{})

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	capture.deliverAll()
	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("second press must be a no-op, got %v", err)
	}

	if mic.opens != 1 {
		t.Fatalf("microphone opened %d times", mic.opens)
	}
	if got := c.Snapshot().State; got != Recording {
		t.Fatalf("state = %v", got)
	}
}

func TestMicDenialStaysIdle(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{err: ErrPermissionDenied}
	events := &recordingSink{}
	c := newTestController(mic, &fakeAssistant{}, &fakePlayer{}, events)

	err := c.Press(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if got := c.Snapshot().State; got != Idle {
		t.Fatalf("state = %v", got)
	}
	codes := events.errorCodes()
	if len(codes) != 1 || codes[0] != CodePermission {
		t.Fatalf("error codes = %v", codes)
	}
}

func TestUploadFailureRestoresPreviousExchange(t *testing.T) {
	t.Parallel()

	first := newFakeCapture([]byte("x"))
	second := newFakeCapture([]byte("y"))
	mic := &fakeMic{sessions: []*fakeCapture{first, second}}
	api := &fakeAssistant{askResp: &Exchange{Transcript: "before", Reply: "kept"}}
	events := &recordingSink{}
	c := newTestController(mic, api, &fakePlayer{}, events)

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	first.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitForState(t, c, Idle)

	api.askErr = errors.New("connection refused")
	api.askResp = nil

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	second.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitForState(t, c, Idle)

	st := c.Snapshot()
	if st.Transcript != "before" || st.Reply != "kept" {
		t.Fatalf("exchange values must survive a failed cycle, got %+v", st)
	}
	if st.LastError == "" {
		t.Fatalf("expected a surfaced error message")
	}
	codes := events.errorCodes()
	if len(codes) != 1 || codes[0] != CodeUpload {
		t.Fatalf("error codes = %v", codes)
	}
}

func TestDecodeFailureKeepsTextSkipsPlayback(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("x"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	api := &fakeAssistant{
		askResp: &Exchange{Transcript: "what time is it", Reply: "Half past three."},
		askErr:  ErrDecodeFailed,
	}
	player := &fakePlayer{}
	events := &recordingSink{}
	c := newTestController(mic, api, player, events)

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	capture.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitForState(t, c, Idle)

	st := c.Snapshot()
	if st.Reply != "Half past three." {
		t.Fatalf("reply = %q", st.Reply)
	}
	if player.prepareCalls != 0 {
		t.Fatalf("playback must be skipped on decode failure")
	}
	codes := events.errorCodes()
	if len(codes) != 1 || codes[0] != CodeDecode {
		t.Fatalf("error codes = %v", codes)
	}
}

func TestPlaybackErrorReleasesHandleAndIdles(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("x"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	api := &fakeAssistant{askResp: &Exchange{Reply: "hi", Audio: []byte("mpeg")}}
	handle := newFakeHandle(errors.New("output device gone"))
	player := &fakePlayer{handles: []*fakeHandle{handle}}
	events := &recordingSink{}
	c := newTestController(mic, api, player, events)

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	capture.deliverAll()
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitForState(t, c, Idle)

	if handle.closeCalls != 1 {
		t.Fatalf("handle released %d times", handle.closeCalls)
	}
	codes := events.errorCodes()
	if len(codes) != 1 || codes[0] != CodePlayback {
		t.Fatalf("error codes = %v", codes)
	}
}

func TestEmptyRecordingStillSubmitted(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture()
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	api := &fakeAssistant{askResp: &Exchange{}}
	c := newTestController(mic, api, &fakePlayer{}, &recordingSink{})

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitForState(t, c, Idle)

	if api.askCalls != 1 {
		t.Fatalf("empty payload must still be submitted")
	}
	if got := string(api.lastPayload); got != "WAV:" {
		t.Fatalf("payload = %q, want minimal container", got)
	}
}

func TestReleaseWhileIdleFails(t *testing.T) {
	t.Parallel()

	c := newTestController(&fakeMic{}, &fakeAssistant{}, &fakePlayer{}, &recordingSink{})
	if err := c.Release(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("err = %v", err)
	}
}

func TestSayRoutesThroughPipeline(t *testing.T) {
	t.Parallel()

	api := &fakeAssistant{chatResp: &Exchange{Reply: "Sure.", Audio: []byte("mpeg")}}
	handle := newFakeHandle(nil)
	player := &fakePlayer{handles: []*fakeHandle{handle}}
	events := &recordingSink{}
	c := newTestController(&fakeMic{}, api, player, events)

	ex, err := c.Say(context.Background(), "play some jazz")
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if ex.Reply != "Sure." {
		t.Fatalf("reply = %q", ex.Reply)
	}
	waitForState(t, c, Idle)

	if api.lastChatText != "play some jazz" {
		t.Fatalf("chat text = %q", api.lastChatText)
	}
	if handle.startCalls != 1 || handle.closeCalls != 1 {
		t.Fatalf("playback start=%d close=%d", handle.startCalls, handle.closeCalls)
	}
}

func TestSayWhileBusy(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture([]byte("x"))
	mic := &fakeMic{sessions: []*fakeCapture{capture}}
	c := newTestController(mic, &fakeAssistant{}, &fakePlayer{}, &recordingSink{})

	if err := c.Press(context.Background()); err != nil {
		t.Fatalf("press: %v", err)
	}
	if _, err := c.Say(context.Background(), "hello"); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v", err)
	}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Snapshot().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, at %v", want, c.Snapshot().State)
}

// --- fakes ---

type fakeMic struct {
	mu       sync.Mutex
	sessions []*fakeCapture
	err      error
	opens    int
}

func (f *fakeMic) Open(_ context.Context, _ CaptureConfig) (CaptureSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.opens >= len(f.sessions) {
		return nil, ErrDeviceUnavailable
	}
	s := f.sessions[f.opens]
	f.opens++
	return s, nil
}

type fakeCapture struct {
	pending [][]byte
	chunks  chan []byte
	stop    sync.Once
}

func newFakeCapture(chunks ...[]byte) *fakeCapture {
	return &fakeCapture{pending: chunks, chunks: make(chan []byte, 16)}
}

func (f *fakeCapture) deliverAll() {
	for _, c := range f.pending {
		f.chunks <- c
	}
	f.pending = nil
}

func (f *fakeCapture) Chunks() <-chan []byte { return f.chunks }

func (f *fakeCapture) Stop() error {
	f.stop.Do(func() { close(f.chunks) })
	return nil
}

type fakeAssistant struct {
	mu           sync.Mutex
	askResp      *Exchange
	askErr       error
	chatResp     *Exchange
	chatErr      error
	askCalls     int
	lastPayload  []byte
	lastChatText string
}

func (f *fakeAssistant) Ask(_ context.Context, payload []byte) (*Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.askCalls++
	f.lastPayload = payload
	return f.askResp, f.askErr
}

func (f *fakeAssistant) Chat(_ context.Context, text string) (*Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastChatText = text
	return f.chatResp, f.chatErr
}

type fakePlayer struct {
	mu           sync.Mutex
	handles      []*fakeHandle
	prepareErr   error
	prepareCalls int
}

func (f *fakePlayer) Prepare(_ []byte) (Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	f.prepareCalls++
	if f.prepareCalls > len(f.handles) {
		return nil, ErrDecodeFailed
	}
	return f.handles[f.prepareCalls-1], nil
}

type fakeHandle struct {
	result     error
	done       chan error
	startCalls int
	closeCalls int
}

func newFakeHandle(result error) *fakeHandle {
	return &fakeHandle{result: result, done: make(chan error, 1)}
}

func (f *fakeHandle) Start() {
	f.startCalls++
	f.done <- f.result
}

func (f *fakeHandle) Done() <-chan error { return f.done }

func (f *fakeHandle) Close() error {
	f.closeCalls++
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	stateLog  []State
	reasonLog []Reason
	codes     []ErrCode
}

func (r *recordingSink) StateChanged(s State, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateLog = append(r.stateLog, s)
	r.reasonLog = append(r.reasonLog, reason)
}

func (r *recordingSink) Transcript(string) {}
func (r *recordingSink) Reply(string)      {}

func (r *recordingSink) Error(code ErrCode, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *recordingSink) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.stateLog...)
}

func (r *recordingSink) errorCodes() []ErrCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ErrCode(nil), r.codes...)
}
