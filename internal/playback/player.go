// Package playback speaks synthesized replies through the default
// output device using beep.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"

	"jarvis/internal/session"
)

// Player decodes a reply payload and hands back a playback handle.
// The backend synthesizes MPEG audio; Ogg Vorbis is accepted too
// since the container is sniffed, not trusted.
type Player struct{}

func NewPlayer() *Player { return &Player{} }

func (p *Player) Prepare(payload []byte) (session.Playback, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", session.ErrDecodeFailed)
	}

	rc := io.NopCloser(bytes.NewReader(payload))

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	if bytes.HasPrefix(payload, []byte("OggS")) {
		streamer, format, err = vorbis.Decode(rc)
	} else {
		streamer, format, err = mp3.Decode(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrDecodeFailed, err)
	}

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		streamer.Close()
		return nil, fmt.Errorf("%w: %v", session.ErrPlaybackFailed, err)
	}

	return &handle{streamer: streamer, done: make(chan error, 1)}, nil
}

// handle is one live output resource. It is created before the
// controller announces the playing state and started only after.
type handle struct {
	streamer  beep.StreamSeekCloser
	done      chan error
	closeOnce sync.Once
}

func (h *handle) Start() {
	speaker.Play(beep.Seq(h.streamer, beep.Callback(func() {
		if err := h.streamer.Err(); err != nil {
			h.done <- fmt.Errorf("%w: %v", session.ErrPlaybackFailed, err)
			return
		}
		h.done <- nil
	})))
}

func (h *handle) Done() <-chan error { return h.done }

func (h *handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		speaker.Clear()
		err = h.streamer.Close()
	})
	return err
}
