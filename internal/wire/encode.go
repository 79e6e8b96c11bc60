package wire

import (
	"encoding/json"
	"fmt"

	"github.com/sameerkhansf/vapi-takehome/domain"
)

// ContentType is the media type of a voice response stream.
const ContentType = "application/x-ndjson"

type transcriptLine struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

type resultLine struct {
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
	AudioURL   string `json:"audioUrl"`
	IsFinal    bool   `json:"isFinal"`
}

type errorLine struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type noSpeechLine struct {
	Error      string `json:"error"`
	Transcript string `json:"transcript"`
}

// Encode renders one event as a single JSON line terminated by '\n'.
func Encode(event domain.PipelineEvent) ([]byte, error) {
	var v any
	switch e := event.(type) {
	case domain.TranscriptEvent:
		v = transcriptLine{Transcript: e.Text, IsFinal: false}
	case domain.ResultEvent:
		v = resultLine{Transcript: e.Transcript, Response: e.Response, AudioURL: e.AudioURL, IsFinal: true}
	case domain.ErrorEvent:
		if e.NoSpeech {
			v = noSpeechLine{Error: e.Message, Transcript: ""}
		} else {
			v = errorLine{Error: e.Message, Code: e.Code}
		}
	default:
		return nil, fmt.Errorf("event %T is not sent by the server", event)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}
	return append(b, '\n'), nil
}
