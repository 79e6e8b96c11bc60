package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sameerkhansf/vapi-takehome/domain"
	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

type recorder struct {
	calls []string
}

type fakeSTT struct {
	rec  *recorder
	text string
	err  error
}

func (f *fakeSTT) TranscribeAudio(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	f.rec.calls = append(f.rec.calls, "transcribe")
	return f.text, f.err
}

type fakeLLM struct {
	rec    *recorder
	reply  string
	err    error
	panics bool
	prompt string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.rec.calls = append(f.rec.calls, "generate")
	f.prompt = prompt
	if f.panics {
		panic("model exploded")
	}
	return f.reply, f.err
}

type fakeTTS struct {
	rec   *recorder
	audio []byte
	err   error
}

func (f *fakeTTS) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	f.rec.calls = append(f.rec.calls, "synthesize")
	return f.audio, f.err
}

func (f *fakeTTS) AudioMimeType() string { return "audio/mp3" }

type sliceSink struct {
	events  []domain.PipelineEvent
	failAt  int
	sendErr error
}

func (s *sliceSink) Send(event domain.PipelineEvent) error {
	if s.sendErr != nil && len(s.events) == s.failAt {
		return s.sendErr
	}
	s.events = append(s.events, event)
	return nil
}

type published struct {
	role entities.MessageRole
	text string
}

type fakePublisher struct {
	got []published
}

func (p *fakePublisher) PublishTranscript(clientID string, role entities.MessageRole, text string) {
	p.got = append(p.got, published{role, text})
}

func newService(t *testing.T, stt *fakeSTT, llm *fakeLLM, tts *fakeTTS, pub TranscriptPublisher) *ConversationService {
	return NewConversationService(stt, llm, tts, pub, repositories.VoiceConfig{}, zaptest.NewLogger(t))
}

func utterance() UtteranceRequest {
	return UtteranceRequest{
		ClientID:  "client-1",
		Utterance: domain.Utterance{Audio: []byte("opus-bytes"), MimeType: "audio/webm"},
	}
}

func TestProcessUtterance_HappyPath(t *testing.T) {
	rec := &recorder{}
	llm := &fakeLLM{rec: rec, reply: "It is noon."}
	pub := &fakePublisher{}
	svc := newService(t,
		&fakeSTT{rec: rec, text: "  what time is it "},
		llm,
		&fakeTTS{rec: rec, audio: []byte{0xff, 0xfb}},
		pub)

	sink := &sliceSink{}
	if err := svc.ProcessUtterance(context.Background(), utterance(), sink); err != nil {
		t.Fatalf("ProcessUtterance: %v", err)
	}

	if want := []string{"transcribe", "generate", "synthesize"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("Expected stage order %v, got %v", want, rec.calls)
	}
	if llm.prompt != "what time is it" {
		t.Errorf("Expected trimmed transcript as prompt, got '%s'", llm.prompt)
	}

	want := []domain.PipelineEvent{
		domain.TranscriptEvent{Text: "what time is it"},
		domain.ResultEvent{Transcript: "what time is it", Response: "It is noon.", AudioURL: "data:audio/mp3;base64,//s="},
	}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("Expected events %v, got %v", want, sink.events)
	}

	wantPub := []published{{entities.MessageRoleUser, "what time is it"}, {entities.MessageRoleAssistant, "It is noon."}}
	if !reflect.DeepEqual(pub.got, wantPub) {
		t.Errorf("Expected published %v, got %v", wantPub, pub.got)
	}
}

func TestProcessUtterance_EmptyPayloadInvokesNoStage(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, &fakeSTT{rec: rec}, &fakeLLM{rec: rec}, &fakeTTS{rec: rec}, nil)

	sink := &sliceSink{}
	req := UtteranceRequest{Utterance: domain.Utterance{MimeType: "audio/webm"}}
	if err := svc.ProcessUtterance(context.Background(), req, sink); !errors.Is(err, ErrEmptyUtterance) {
		t.Errorf("Expected ErrEmptyUtterance, got %v", err)
	}
	if len(rec.calls) != 0 || len(sink.events) != 0 {
		t.Errorf("Expected no stage and no event, got calls %v events %v", rec.calls, sink.events)
	}
}

func TestProcessUtterance_NoSpeech(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, &fakeSTT{rec: rec, text: " \t"}, &fakeLLM{rec: rec}, &fakeTTS{rec: rec}, nil)

	sink := &sliceSink{}
	err := svc.ProcessUtterance(context.Background(), utterance(), sink)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrNoSpeech, got %v", err)
	}

	if want := []string{"transcribe"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("Expected only transcription, got %v", rec.calls)
	}
	want := []domain.PipelineEvent{domain.ErrorEvent{Message: "No speech detected in audio", NoSpeech: true}}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("Expected %v, got %v", want, sink.events)
	}
}

func TestProcessUtterance_StageFailuresEmitOneError(t *testing.T) {
	tests := []struct {
		name      string
		stt       error
		llm       error
		panics    bool
		tts       error
		wantCode  voiceerr.Code
		wantCalls []string
		wantFirst bool // a transcript event precedes the error
	}{
		{
			name:      "transcription provider rejects audio",
			stt:       status.Error(codes.InvalidArgument, "bad encoding"),
			wantCode:  voiceerr.InvalidAudioFormat,
			wantCalls: []string{"transcribe"},
		},
		{
			name:      "generation fails",
			llm:       errors.New("quota"),
			wantCode:  voiceerr.AIGenerationFailed,
			wantCalls: []string{"transcribe", "generate"},
			wantFirst: true,
		},
		{
			name:      "generation panics",
			panics:    true,
			wantCode:  voiceerr.AIGenerationFailed,
			wantCalls: []string{"transcribe", "generate"},
			wantFirst: true,
		},
		{
			name:      "synthesis unavailable",
			tts:       status.Error(codes.Unavailable, "down"),
			wantCode:  voiceerr.NetworkError,
			wantCalls: []string{"transcribe", "generate", "synthesize"},
			wantFirst: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			svc := newService(t,
				&fakeSTT{rec: rec, text: "hello", err: tt.stt},
				&fakeLLM{rec: rec, reply: "hi", err: tt.llm, panics: tt.panics},
				&fakeTTS{rec: rec, audio: []byte("a"), err: tt.tts},
				nil)

			sink := &sliceSink{}
			err := svc.ProcessUtterance(context.Background(), utterance(), sink)

			var verr *voiceerr.Error
			if !errors.As(err, &verr) || verr.Code != tt.wantCode {
				t.Fatalf("Expected %s, got %v", tt.wantCode, err)
			}
			if !reflect.DeepEqual(rec.calls, tt.wantCalls) {
				t.Errorf("Expected calls %v, got %v", tt.wantCalls, rec.calls)
			}

			var errorEvents int
			for i, ev := range sink.events {
				if _, ok := ev.(domain.ErrorEvent); ok {
					errorEvents++
					if i != len(sink.events)-1 {
						t.Error("Expected the error event to be last")
					}
				}
				if _, ok := ev.(domain.ResultEvent); ok {
					t.Error("Expected no success event after a failure")
				}
			}
			if errorEvents != 1 {
				t.Errorf("Expected exactly one error event, got %d", errorEvents)
			}

			last := sink.events[len(sink.events)-1].(domain.ErrorEvent)
			if last.Code != string(tt.wantCode) || last.Message != tt.wantCode.Message() {
				t.Errorf("Unexpected error event %+v", last)
			}

			_, firstIsTranscript := sink.events[0].(domain.TranscriptEvent)
			if firstIsTranscript != tt.wantFirst {
				t.Errorf("Expected transcript first=%v, got events %v", tt.wantFirst, sink.events)
			}
		})
	}
}

func TestProcessUtterance_SinkFailureAbortsRemainingStages(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, &fakeSTT{rec: rec, text: "hello"}, &fakeLLM{rec: rec, reply: "hi"}, &fakeTTS{rec: rec, audio: []byte("a")}, nil)

	gone := errors.New("client went away")
	sink := &sliceSink{failAt: 0, sendErr: gone}

	err := svc.ProcessUtterance(context.Background(), utterance(), sink)
	if !errors.Is(err, gone) {
		t.Errorf("Expected sink error, got %v", err)
	}
	if want := []string{"transcribe"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("Expected generation to be skipped, got %v", rec.calls)
	}
	if len(sink.events) != 0 {
		t.Errorf("Expected no events, got %v", sink.events)
	}
}

func TestProcessUtterance_BlankReplyIsSynthesisFailure(t *testing.T) {
	rec := &recorder{}
	tts := &fakeTTS{rec: rec, err: errors.New("text cannot be empty")}
	svc := newService(t, &fakeSTT{rec: rec, text: "hello"}, &fakeLLM{rec: rec, reply: "   "}, tts, nil)

	sink := &sliceSink{}
	err := svc.ProcessUtterance(context.Background(), utterance(), sink)

	var verr *voiceerr.Error
	if !errors.As(err, &verr) || verr.Code != voiceerr.TTSFailed {
		t.Errorf("Expected TTSFailed, got %v", err)
	}
	if !strings.Contains(verr.Details.Error(), "empty") {
		t.Errorf("Expected details to keep provider error, got %v", verr.Details)
	}
}
