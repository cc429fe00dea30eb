package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEnvelope means the frame is not a {topic, payload} object.
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	// ErrMalformedPayload means the payload string does not hold JSON.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// Kind is the action an event reports, decoded from the topic suffix.
type Kind int

const (
	KindUnknown Kind = iota
	KindAdded
	KindRemoved
	KindUpdated
	KindStatus
	KindStatusChanged
	KindState
	KindStateChanged
	KindLinkAdded
	KindLinkRemoved
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	case KindUpdated:
		return "updated"
	case KindStatus:
		return "status"
	case KindStatusChanged:
		return "statuschanged"
	case KindState:
		return "state"
	case KindStateChanged:
		return "statechanged"
	case KindLinkAdded:
		return "link_added"
	case KindLinkRemoved:
		return "link_removed"
	default:
		return "unknown"
	}
}

// EntityLinks is the topic segment used by item-channel link events.
const EntityLinks = "links"

// Event is one decoded push frame.
type Event struct {
	Topic     string
	Namespace string
	Entity    string
	ID        string
	Kind      Kind
	Payload   json.RawMessage
}

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a raw frame. The payload field is itself a JSON document
// encoded as a string, so it is decoded twice.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if strings.TrimSpace(env.Topic) == "" {
		return Event{}, fmt.Errorf("%w: missing topic", ErrMalformedEnvelope)
	}

	payload, err := decodePayload(env.Payload)
	if err != nil {
		return Event{}, err
	}

	evt := ParseTopic(env.Topic)
	evt.Payload = payload
	return evt, nil
}

func decodePayload(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		if !json.Valid(raw) {
			return nil, ErrMalformedPayload
		}
		return raw, nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return nil, nil
	}
	if !json.Valid([]byte(inner)) {
		return nil, ErrMalformedPayload
	}
	return json.RawMessage(inner), nil
}

// ParseTopic splits <namespace>/<entity>/<id>/<action> into an Event with
// no payload. Topics with fewer segments decode as KindUnknown.
func ParseTopic(topic string) Event {
	evt := Event{Topic: topic}
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return evt
	}
	evt.Namespace = parts[0]
	evt.Entity = parts[1]
	evt.ID = strings.Join(parts[2:len(parts)-1], "/")
	evt.Kind = kindOf(evt.Entity, parts[len(parts)-1])
	return evt
}

func kindOf(entity, action string) Kind {
	if entity == EntityLinks {
		switch action {
		case "added":
			return KindLinkAdded
		case "removed":
			return KindLinkRemoved
		}
		return KindUnknown
	}
	switch action {
	case "added":
		return KindAdded
	case "removed":
		return KindRemoved
	case "updated":
		return KindUpdated
	case "status":
		return KindStatus
	case "statuschanged":
		return KindStatusChanged
	case "state":
		return KindState
	case "statechanged":
		return KindStateChanged
	}
	return KindUnknown
}

// Unmarshal decodes the payload into v.
func (e Event) Unmarshal(v any) error {
	if len(e.Payload) == 0 {
		return ErrMalformedPayload
	}
	return json.Unmarshal(e.Payload, v)
}

// UnmarshalCurrent decodes the payload into v. Update and change events
// carry [current, previous]; only the first element is decoded.
func (e Event) UnmarshalCurrent(v any) error {
	if len(e.Payload) == 0 {
		return ErrMalformedPayload
	}
	if e.Payload[0] != '[' {
		return json.Unmarshal(e.Payload, v)
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(e.Payload, &pair); err != nil {
		return err
	}
	if len(pair) == 0 {
		return ErrMalformedPayload
	}
	return json.Unmarshal(pair[0], v)
}
