package session

import "errors"

var (
	// ErrPermissionDenied means the host refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable means no usable input device exists.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrUploadFailed covers transport errors and non-2xx responses
	// from the assistant endpoint.
	ErrUploadFailed = errors.New("upload failed")

	// ErrDecodeFailed means the synthesized audio payload could not be
	// decoded; reply text, if any, is still usable.
	ErrDecodeFailed = errors.New("audio decode failed")

	// ErrPlaybackFailed means the output device or codec failed while
	// speaking a reply.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrNotRecording is returned by Release outside a recording.
	ErrNotRecording = errors.New("not recording")

	// ErrBusy is returned by Say while a cycle is already in flight.
	ErrBusy = errors.New("a cycle is already in flight")
)
