// Package events provides the EventSink implementations the daemon
// wires together: structured logging, fan-out, and audio ducking
// driven by state transitions.
package events

import (
	"context"
	"log/slog"
	"time"

	"jarvis/internal/audio"
	"jarvis/internal/notify"
	"jarvis/internal/session"
)

// LogSink writes every controller event to slog.
type LogSink struct{}

func (LogSink) StateChanged(s session.State, reason session.Reason) {
	slog.Info("state", "state", s.String(), "reason", string(reason))
}

func (LogSink) Transcript(text string) {
	slog.Info("transcript", "text", text)
}

func (LogSink) Reply(text string) {
	slog.Info("reply", "text", text)
}

func (LogSink) Error(code session.ErrCode, detail string) {
	slog.Error("cycle error", "code", string(code), "detail", detail)
}

// Multi fans every event out to all sinks in order.
type Multi []session.EventSink

func (m Multi) StateChanged(s session.State, reason session.Reason) {
	for _, sink := range m {
		sink.StateChanged(s, reason)
	}
}

func (m Multi) Transcript(text string) {
	for _, sink := range m {
		sink.Transcript(text)
	}
}

func (m Multi) Reply(text string) {
	for _, sink := range m {
		sink.Reply(text)
	}
}

func (m Multi) Error(code session.ErrCode, detail string) {
	for _, sink := range m {
		sink.Error(code, detail)
	}
}

// DuckSink drives the output ducker from state transitions: foreign
// streams fade down when a recording starts and recover once the
// cycle settles back to idle. Pactl calls can stall, so they run off
// the controller's goroutines.
type DuckSink struct {
	Ducker *audio.Ducker
}

func (d DuckSink) StateChanged(s session.State, _ session.Reason) {
	switch s {
	case session.Recording:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.Ducker.Duck(ctx); err != nil {
				slog.Warn("duck", "err", err)
			}
		}()
	case session.Idle:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.Ducker.Unduck(ctx); err != nil {
				slog.Warn("unduck", "err", err)
			}
		}()
	}
}

func (DuckSink) Transcript(string) {}

func (DuckSink) Reply(string) {}

func (DuckSink) Error(session.ErrCode, string) {}

// CueSink plays a short tone when the microphone goes hot.
type CueSink struct{}

func (CueSink) StateChanged(s session.State, _ session.Reason) {
	if s != session.Recording {
		return
	}
	go func() {
		if err := notify.Cue(); err != nil {
			slog.Warn("record cue", "err", err)
		}
	}()
}

func (CueSink) Transcript(string) {}

func (CueSink) Reply(string) {}

func (CueSink) Error(session.ErrCode, string) {}
