package wire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned for anything that is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid base64 data URL")

// EncodeDataURL inlines audio as "data:<mime>;base64,<payload>".
func EncodeDataURL(mimeType string, audio []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio)
}

// DecodeDataURL reverses EncodeDataURL.
func DecodeDataURL(dataURL string) (mimeType string, payload []byte, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	payload, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, payload, nil
}
