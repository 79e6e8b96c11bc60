package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sameerkhansf/vapi-takehome/domain"
)

// LineParser splits an arbitrarily chunked byte stream into complete lines.
// The trailing partial line of each chunk is kept and prefixed to the next.
type LineParser struct {
	buf []byte
}

// Feed appends chunk and returns every complete, non-blank line it closes.
// Returned slices do not alias the internal buffer.
func (p *LineParser) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(p.buf[:i])
		if len(line) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
		p.buf = p.buf[i+1:]
	}

	// Compact so the backing array does not grow across a long stream.
	if len(p.buf) == 0 {
		p.buf = nil
	} else {
		p.buf = bytes.Clone(p.buf)
	}
	return lines
}

// Flush returns the buffered unterminated line, if any, and resets the parser.
func (p *LineParser) Flush() []byte {
	line := bytes.TrimSpace(p.buf)
	p.buf = nil
	if len(line) == 0 {
		return nil
	}
	return bytes.Clone(line)
}

// Pending reports the number of buffered bytes not yet forming a line.
func (p *LineParser) Pending() int {
	return len(p.buf)
}

type rawLine struct {
	Transcript *string `json:"transcript"`
	Response   *string `json:"response"`
	AudioURL   *string `json:"audioUrl"`
	IsFinal    bool    `json:"isFinal"`
	Error      *string `json:"error"`
	Code       string  `json:"code"`
}

// Decode turns one wire line into client events. A final success line expands
// to a ResponseEvent followed by an AudioReplyEvent when audio is present.
func Decode(line []byte) ([]domain.PipelineEvent, error) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid wire line: %w", err)
	}

	if raw.Error != nil {
		noSpeech := raw.Code == "" && raw.Transcript != nil && *raw.Transcript == ""
		return []domain.PipelineEvent{domain.ErrorEvent{
			Message:  *raw.Error,
			Code:     raw.Code,
			NoSpeech: noSpeech,
		}}, nil
	}

	if raw.Transcript == nil {
		return nil, fmt.Errorf("wire line has neither error nor transcript")
	}

	if !raw.IsFinal {
		return []domain.PipelineEvent{domain.TranscriptEvent{Text: *raw.Transcript}}, nil
	}

	var events []domain.PipelineEvent
	if raw.Response != nil {
		events = append(events, domain.ResponseEvent{Transcript: *raw.Transcript, Text: *raw.Response})
	}
	if raw.AudioURL != nil && *raw.AudioURL != "" {
		events = append(events, domain.AudioReplyEvent{DataURL: *raw.AudioURL})
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("final wire line carries no response")
	}
	return events, nil
}
