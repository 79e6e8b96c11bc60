package domain

// Utterance is one recorded user turn: the raw audio bytes plus the mime type
// describing their codec. It is not modified after capture hands it off.
type Utterance struct {
	Audio    []byte
	MimeType string
}

// Empty reports whether the utterance carries no audio.
func (u Utterance) Empty() bool {
	return len(u.Audio) == 0
}

// EventKind tags a PipelineEvent variant.
type EventKind string

const (
	EventTranscript EventKind = "transcript"
	EventResult     EventKind = "result"
	EventResponse   EventKind = "response"
	EventAudioReply EventKind = "audio_reply"
	EventError      EventKind = "error"
)

// PipelineEvent is one step of progress for a single utterance.
type PipelineEvent interface {
	Kind() EventKind
	// Terminal reports whether no further event may follow this one.
	Terminal() bool
}

// TranscriptEvent carries the recognized user text before generation starts.
type TranscriptEvent struct {
	Text string
}

func (TranscriptEvent) Kind() EventKind { return EventTranscript }
func (TranscriptEvent) Terminal() bool  { return false }

// ResultEvent is the combined final success event emitted by the server.
type ResultEvent struct {
	Transcript string
	Response   string
	AudioURL   string
}

func (ResultEvent) Kind() EventKind { return EventResult }
func (ResultEvent) Terminal() bool  { return true }

// ResponseEvent is the generated reply as seen by the client. It is always
// delivered before the matching AudioReplyEvent.
type ResponseEvent struct {
	Transcript string
	Text       string
}

func (ResponseEvent) Kind() EventKind { return EventResponse }
func (ResponseEvent) Terminal() bool  { return false }

// AudioReplyEvent carries the synthesized reply as an inline data URL.
type AudioReplyEvent struct {
	DataURL string
}

func (AudioReplyEvent) Kind() EventKind { return EventAudioReply }
func (AudioReplyEvent) Terminal() bool  { return true }

// ErrorEvent is the terminal failure event. NoSpeech marks the blank
// transcription case, which is written with an empty transcript field.
type ErrorEvent struct {
	Message  string
	Code     string
	NoSpeech bool
}

func (ErrorEvent) Kind() EventKind { return EventError }
func (ErrorEvent) Terminal() bool  { return true }
