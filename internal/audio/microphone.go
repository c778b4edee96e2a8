// Package audio owns the host audio boundary: microphone capture over
// portaudio, WAV finalization of captured PCM, and output ducking
// while the assistant is listening or speaking.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"jarvis/internal/session"
)

// Microphone captures from the default input device. Init must be
// called once before Open and Close once at shutdown.
type Microphone struct{}

func NewMicrophone() *Microphone { return &Microphone{} }

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

func (m *Microphone) Close() {
	portaudio.Terminate()
}

// Open starts a capture session on the default input device. Chunks
// are 16-bit little-endian mono PCM, one frame per chunk.
func (m *Microphone) Open(_ context.Context, cfg session.CaptureConfig) (session.CaptureSession, error) {
	buf := make([]float32, cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, classify(err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, classify(err)
	}

	c := &capture{
		stream: stream,
		buf:    buf,
		chunks: make(chan []byte, 32),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.loop()

	return c, nil
}

// classify maps a portaudio failure onto the controller's error
// taxonomy. Portaudio does not distinguish denial from absence, so
// the error text decides.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", session.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", session.ErrDeviceUnavailable, err)
}

type capture struct {
	stream *portaudio.Stream
	buf    []float32

	chunks   chan []byte
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (c *capture) Chunks() <-chan []byte { return c.chunks }

// Stop releases the device and closes the chunk channel. It does not
// return until the read loop has exited.
func (c *capture) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *capture) loop() {
	defer close(c.done)
	defer close(c.chunks)
	defer c.stream.Close()
	defer func() {
		if err := c.stream.Stop(); err != nil {
			slog.Warn("input stream stop", "err", err)
		}
	}()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			select {
			case <-c.stop:
			default:
				slog.Warn("input stream read", "err", err)
			}
			return
		}

		chunk := frameToPCM16(c.buf)
		select {
		case c.chunks <- chunk:
		case <-c.stop:
			return
		}
	}
}

// frameToPCM16 converts one float32 frame to 16-bit LE PCM bytes.
func frameToPCM16(frame []float32) []byte {
	out := make([]byte, 2*len(frame))
	for i, v := range frame {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*32767)))
	}
	return out
}
