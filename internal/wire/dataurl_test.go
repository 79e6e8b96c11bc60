package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestDataURL(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x90, 0x00}

	url := EncodeDataURL("audio/mp3", audio)
	if url != "data:audio/mp3;base64,//uQAA==" {
		t.Errorf("Unexpected data URL %s", url)
	}

	mimeType, payload, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if mimeType != "audio/mp3" {
		t.Errorf("Expected audio/mp3, got %s", mimeType)
	}
	if !bytes.Equal(payload, audio) {
		t.Errorf("Expected %v, got %v", audio, payload)
	}

	for _, bad := range []string{"https://example.com/a.mp3", "data:audio/mp3,plain", "data:audio/mp3;base64", "data:audio/mp3;base64,@@@"} {
		if _, _, err := DecodeDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("Expected ErrInvalidDataURL for %q, got %v", bad, err)
		}
	}
}
