// Package session holds the recorder/playback controller: a four-state
// machine (idle, recording, processing, playing) that owns the
// microphone for the span of one recording, submits the captured
// payload to the assistant, and speaks the synthesized reply.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Encoder finalizes buffered PCM chunks into one container payload.
// Zero chunks must still produce a minimal, submittable container.
type Encoder func(chunks [][]byte, sampleRate int) ([]byte, error)

// Config carries the controller's capture settings.
type Config struct {
	Capture CaptureConfig
	Encode  Encoder
}

// Controller drives one press-to-release-to-playback cycle at a time.
// All entry points are state-guarded; concurrent cycles are impossible.
type Controller struct {
	mic    Microphone
	api    Assistant
	player Player
	events EventSink
	cfg    Config

	// guards everything below
	mu          sync.Mutex
	state       State
	capture     CaptureSession
	buffer      [][]byte
	collectDone chan struct{}
	transcript  string
	reply       string
	lastErr     string
}

func NewController(mic Microphone, api Assistant, player Player, events EventSink, cfg Config) *Controller {
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.FrameSize <= 0 {
		cfg.Capture.FrameSize = 1024
	}
	return &Controller{
		mic:    mic,
		api:    api,
		player: player,
		events: events,
		cfg:    cfg,
		state:  Idle,
	}
}

// Press starts a recording. Outside Idle it is a no-op: the state
// guard, not the caller, debounces rapid presses.
func (c *Controller) Press(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		slog.Debug("press ignored", "state", state.String())
		return nil
	}
	c.mu.Unlock()

	capture, err := c.mic.Open(ctx, c.cfg.Capture)
	if err != nil {
		code := CodeDevice
		if errors.Is(err, ErrPermissionDenied) {
			code = CodePermission
		}
		c.surface(code, err)
		return err
	}

	c.mu.Lock()
	if c.state != Idle {
		// lost a race against another entry point
		c.mu.Unlock()
		_ = capture.Stop()
		return nil
	}
	c.state = Recording
	c.capture = capture
	c.buffer = nil
	c.collectDone = make(chan struct{})
	done := c.collectDone
	c.mu.Unlock()

	c.events.StateChanged(Recording, ReasonRecordingStarted)

	go func() {
		for chunk := range capture.Chunks() {
			c.mu.Lock()
			c.buffer = append(c.buffer, chunk)
			c.mu.Unlock()
		}
		close(done)
	}()

	return nil
}

// Release stops the capture, finalizes the buffer into one payload and
// submits it asynchronously. An empty recording is still submitted;
// whether an empty utterance means anything is the assistant's call.
func (c *Controller) Release() error {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	capture := c.capture
	done := c.collectDone
	c.capture = nil
	c.state = Processing
	c.mu.Unlock()

	if err := capture.Stop(); err != nil {
		slog.Warn("capture did not stop cleanly", "err", err)
	}
	<-done

	c.mu.Lock()
	chunks := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	c.events.StateChanged(Processing, ReasonUploading)

	payload, err := c.cfg.Encode(chunks, c.cfg.Capture.SampleRate)
	if err != nil {
		c.fail(CodeUpload, ReasonUploadFailed, err)
		return nil
	}

	go func() {
		ex, err := c.api.Ask(context.Background(), payload)
		c.handleExchange(ex, err)
	}()

	return nil
}

// Say routes a typed message through the same pipeline, recording
// aside. The returned exchange carries the reply text and card; a
// voice reply, if any, is spoken in the background.
func (c *Controller) Say(ctx context.Context, text string) (*Exchange, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = Processing
	c.mu.Unlock()

	c.events.StateChanged(Processing, ReasonThinking)

	ex, err := c.api.Chat(ctx, text)
	if err != nil && !errors.Is(err, ErrDecodeFailed) {
		c.fail(CodeUpload, ReasonUploadFailed, err)
		return nil, err
	}

	go c.handleExchange(ex, err)
	return ex, nil
}

// Snapshot reports the current state and the latest exchange values.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:      c.state,
		Transcript: c.transcript,
		Reply:      c.reply,
		LastError:  c.lastErr,
	}
}

// handleExchange applies one assistant response: overwrite the text
// values for each field present, then either speak the reply or settle
// back to Idle.
func (c *Controller) handleExchange(ex *Exchange, err error) {
	if err != nil && !errors.Is(err, ErrDecodeFailed) {
		c.fail(CodeUpload, ReasonUploadFailed, err)
		return
	}

	if ex != nil {
		c.mu.Lock()
		if ex.Transcript != "" {
			c.transcript = ex.Transcript
		}
		if ex.Reply != "" {
			c.reply = ex.Reply
		}
		c.mu.Unlock()

		if ex.Transcript != "" {
			c.events.Transcript(ex.Transcript)
		}
		if ex.Reply != "" {
			c.events.Reply(ex.Reply)
		}
	}

	if err != nil {
		// text landed, audio payload did not: skip playback
		c.fail(CodeDecode, ReasonDecodeFailed, err)
		return
	}

	if ex == nil || len(ex.Audio) == 0 {
		c.toIdle(ReasonReplyReady)
		return
	}

	c.speak(ex.Audio)
}

// speak plays one synthesized reply. The handle exists before the
// Playing transition is announced, and output starts only after it:
// consumers observing Playing may rely on the resource being live.
func (c *Controller) speak(audio []byte) {
	handle, err := c.player.Prepare(audio)
	if err != nil {
		code, reason := CodeDecode, ReasonDecodeFailed
		if errors.Is(err, ErrPlaybackFailed) {
			code, reason = CodePlayback, ReasonPlaybackFailed
		}
		c.fail(code, reason, err)
		return
	}

	c.mu.Lock()
	c.state = Playing
	c.mu.Unlock()
	c.events.StateChanged(Playing, ReasonSpeaking)

	handle.Start()
	playErr := <-handle.Done()
	if err := handle.Close(); err != nil {
		slog.Warn("playback handle close", "err", err)
	}

	if playErr != nil {
		c.fail(CodePlayback, ReasonPlaybackFailed, playErr)
		return
	}
	c.toIdle(ReasonPlaybackDone)
}

func (c *Controller) fail(code ErrCode, reason Reason, err error) {
	c.surface(code, err)
	c.toIdle(reason)
}

func (c *Controller) surface(code ErrCode, err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.events.Error(code, err.Error())
}

func (c *Controller) toIdle(reason Reason) {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	c.events.StateChanged(Idle, reason)
}
