package session

// State is the single mode the controller is in. Transitions are the
// only way to change it; every failure path lands back in Idle.
type State int

const (
	Idle State = iota
	Recording
	Processing
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Reason annotates a state change for event consumers.
type Reason string

const (
	ReasonRecordingStarted Reason = "recording_started"
	ReasonUploading        Reason = "uploading"
	ReasonThinking         Reason = "thinking"
	ReasonSpeaking         Reason = "speaking"
	ReasonReplyReady       Reason = "reply_ready"
	ReasonPlaybackDone     Reason = "playback_done"
	ReasonMicFailed        Reason = "mic_failed"
	ReasonUploadFailed     Reason = "upload_failed"
	ReasonDecodeFailed     Reason = "decode_failed"
	ReasonPlaybackFailed   Reason = "playback_failed"
)

// ErrCode labels a surfaced error for event consumers.
type ErrCode string

const (
	CodePermission ErrCode = "permission_denied"
	CodeDevice     ErrCode = "device_unavailable"
	CodeUpload     ErrCode = "upload_failed"
	CodeDecode     ErrCode = "decode_failed"
	CodePlayback   ErrCode = "playback_failed"
)

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State      State  `json:"state"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	LastError  string `json:"last_error"`
}
