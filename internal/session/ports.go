package session

import (
	"context"

	"jarvis/internal/cards"
)

// CaptureConfig describes how the microphone should be opened.
type CaptureConfig struct {
	SampleRate int
	FrameSize  int
}

// CaptureSession is one live microphone capture. Chunks delivers PCM
// chunks in arrival order and is closed by Stop; Stop does not return
// until the device is released and the channel is closed.
type CaptureSession interface {
	Chunks() <-chan []byte
	Stop() error
}

// Microphone opens capture sessions on the host input device.
type Microphone interface {
	Open(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// Exchange is one parsed assistant response. Absent fields stay zero;
// Audio holds the decoded synthesized reply, nil when the response
// carried none.
type Exchange struct {
	Transcript string
	Reply      string
	Audio      []byte
	Intent     string
	Confidence float64
	Card       *cards.Payload
}

// Assistant is the remote collaborator performing transcription,
// reasoning and speech synthesis.
type Assistant interface {
	// Ask submits one recorded payload. A non-nil Exchange may
	// accompany ErrDecodeFailed: text fields parsed fine but the
	// audio payload did not.
	Ask(ctx context.Context, wavPayload []byte) (*Exchange, error)

	// Chat submits a typed message through the same pipeline.
	Chat(ctx context.Context, text string) (*Exchange, error)
}

// Playback is one exclusively-owned output resource. Start begins
// output; Done delivers the terminal result exactly once; Close
// releases the resource and is safe to call more than once.
type Playback interface {
	Start()
	Done() <-chan error
	Close() error
}

// Player constructs playback handles from decoded audio payloads.
type Player interface {
	Prepare(payload []byte) (Playback, error)
}

// EventSink receives controller events. Implementations must not
// block; calls are made from the controller's goroutines.
type EventSink interface {
	StateChanged(s State, reason Reason)
	Transcript(text string)
	Reply(text string)
	Error(code ErrCode, detail string)
}
