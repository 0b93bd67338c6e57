package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type EnvelopeMode string

const (
	// EnvelopeDetect unwraps one level when the body is an object with a
	// top-level "data" key.
	EnvelopeDetect EnvelopeMode = "detect"
	EnvelopeAlways EnvelopeMode = "always"
	EnvelopeNever  EnvelopeMode = "never"
)

// EnvelopeHeader lets the backend state explicitly whether a body is wrapped.
// When present it overrides the configured mode.
const EnvelopeHeader = "X-Envelope"

var ErrMissingEnvelope = errors.New("response is not enveloped")

func ParseEnvelopeMode(s string) EnvelopeMode {
	switch EnvelopeMode(strings.ToLower(strings.TrimSpace(s))) {
	case EnvelopeAlways:
		return EnvelopeAlways
	case EnvelopeNever:
		return EnvelopeNever
	}
	return EnvelopeDetect
}

// decodeBody decodes a successful response into out, unwrapping the envelope
// according to the marker header or mode.
func decodeBody(body []byte, header http.Header, mode EnvelopeMode, out any) error {
	if out == nil {
		return nil
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	payload, err := unwrap(body, header, mode)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func unwrap(body []byte, header http.Header, mode EnvelopeMode) ([]byte, error) {
	switch strings.ToLower(header.Get(EnvelopeHeader)) {
	case "true", "1":
		mode = EnvelopeAlways
	case "false", "0":
		mode = EnvelopeNever
	}

	if mode == EnvelopeNever || body[0] != '{' {
		if mode == EnvelopeAlways {
			return nil, ErrMissingEnvelope
		}
		return body, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	data, ok := probe["data"]
	if !ok {
		if mode == EnvelopeAlways {
			return nil, ErrMissingEnvelope
		}
		return body, nil
	}
	return data, nil
}
