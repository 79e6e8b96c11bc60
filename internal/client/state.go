package client

// State is the single processing state of the client pipeline.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateProcessing
	StateSynthesizing
	StatePlaying
	StateError
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateRecording:    "recording",
	StateTranscribing: "transcribing",
	StateProcessing:   "processing",
	StateSynthesizing: "synthesizing",
	StatePlaying:      "playing",
	StateError:        "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Busy reports whether an utterance occupies the pipeline.
func (s State) Busy() bool {
	return s != StateIdle && s != StateError
}

// Trigger is an input to the state machine.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerStop
	TriggerTranscript
	TriggerResponse
	TriggerAudio
	TriggerPlaybackHandedOff
	TriggerFail
	TriggerDismiss
	TriggerReset
)

var triggerNames = [...]string{
	TriggerStart:             "start",
	TriggerStop:              "stop",
	TriggerTranscript:        "transcript",
	TriggerResponse:          "response",
	TriggerAudio:             "audio",
	TriggerPlaybackHandedOff: "playback_handed_off",
	TriggerFail:              "fail",
	TriggerDismiss:           "dismiss",
	TriggerReset:             "reset",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

// Transition returns the state that follows s on trigger t and whether the
// move is allowed. A rejected move returns s unchanged.
func Transition(s State, t Trigger) (State, bool) {
	switch t {
	case TriggerFail:
		return StateError, true
	case TriggerDismiss:
		if s == StateError {
			return StateIdle, true
		}
	case TriggerReset:
		// Recording resets when the capture session ended without a stop.
		if s == StateIdle || s == StateRecording || s == StateError || s == StatePlaying {
			return StateIdle, true
		}
	case TriggerStart:
		if s == StateIdle {
			return StateRecording, true
		}
	case TriggerStop:
		if s == StateRecording {
			return StateTranscribing, true
		}
	case TriggerTranscript:
		if s == StateTranscribing {
			return StateProcessing, true
		}
	case TriggerResponse:
		if s == StateProcessing {
			return StateSynthesizing, true
		}
	case TriggerAudio:
		if s == StateSynthesizing {
			return StatePlaying, true
		}
	case TriggerPlaybackHandedOff:
		if s == StatePlaying {
			return StateIdle, true
		}
	}
	return s, false
}
