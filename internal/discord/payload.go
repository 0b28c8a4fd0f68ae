package discord

import (
	"errors"
	"fmt"
	"strings"
)

// Button payloads travel through Discord as component custom IDs. The codec
// here is the only place that builds or parses them; handlers never touch
// the raw string.

// payloadPrefix namespaces our custom IDs so foreign components are
// rejected on sight.
const payloadPrefix = "vocalis"

// Action identifies what a button press asks for.
type Action string

// ActionEdit requests a correction flow for a transcription.
const ActionEdit Action = "edit"

// ErrMalformedPayload is returned for any custom ID this codec did not
// produce.
var ErrMalformedPayload = errors.New("discord: malformed component payload")

// Payload is the decoded form of a component custom ID.
type Payload struct {
	Action          Action
	TranscriptionID string
}

// Encode serialises p into a component custom ID.
func (p Payload) Encode() string {
	return fmt.Sprintf("%s:%s:%s", payloadPrefix, p.Action, p.TranscriptionID)
}

// ParsePayload decodes a component custom ID. Parsing is strict: the
// namespace must match, the action must be known, and the transcription id
// must be present. Anything else is [ErrMalformedPayload].
func ParsePayload(customID string) (Payload, error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, customID)
	}
	if parts[0] != payloadPrefix {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, customID)
	}
	action := Action(parts[1])
	if action != ActionEdit {
		return Payload{}, fmt.Errorf("%w: unknown action %q", ErrMalformedPayload, parts[1])
	}
	if parts[2] == "" {
		return Payload{}, fmt.Errorf("%w: empty transcription id", ErrMalformedPayload)
	}
	return Payload{Action: action, TranscriptionID: parts[2]}, nil
}
