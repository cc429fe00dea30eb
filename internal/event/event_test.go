package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDoubleEncodedPayload(t *testing.T) {
	frame := []byte(`{"topic":"smarthome/things/hue:bridge:1/status","payload":"{\"status\":\"ONLINE\",\"statusDetail\":\"NONE\"}","type":"ThingStatusInfoEvent"}`)

	evt, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "smarthome", evt.Namespace)
	assert.Equal(t, "things", evt.Entity)
	assert.Equal(t, "hue:bridge:1", evt.ID)
	assert.Equal(t, KindStatus, evt.Kind)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, evt.Unmarshal(&status))
	assert.Equal(t, "ONLINE", status.Status)
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = Decode([]byte(`{"payload":"{}"}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = Decode([]byte(`{"topic":"smarthome/items/A/added","payload":"{broken"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAcceptsEmptyPayload(t *testing.T) {
	evt, err := Decode([]byte(`{"topic":"smarthome/items/A/removed","payload":""}`))
	require.NoError(t, err)
	assert.Equal(t, KindRemoved, evt.Kind)
	assert.Nil(t, evt.Payload)
}

func TestParseTopicKinds(t *testing.T) {
	cases := map[string]Kind{
		"smarthome/things/T/added":         KindAdded,
		"smarthome/things/T/removed":       KindRemoved,
		"smarthome/things/T/updated":       KindUpdated,
		"smarthome/things/T/status":        KindStatus,
		"smarthome/things/T/statuschanged": KindStatusChanged,
		"smarthome/items/I/state":          KindState,
		"smarthome/items/I/statechanged":   KindStateChanged,
		"smarthome/links/I-T:c1/added":     KindLinkAdded,
		"smarthome/links/I-T:c1/removed":   KindLinkRemoved,
		"smarthome/links/I-T:c1/updated":   KindUnknown,
		"smarthome/things/T/somethingelse": KindUnknown,
		"smarthome/things":                 KindUnknown,
	}
	for topic, want := range cases {
		assert.Equal(t, want, ParseTopic(topic).Kind, topic)
	}
}

func TestUnmarshalCurrentTakesFirstOfPair(t *testing.T) {
	evt := Event{Payload: []byte(`[{"label":"new"},{"label":"old"}]`)}

	var v struct {
		Label string `json:"label"`
	}
	require.NoError(t, evt.UnmarshalCurrent(&v))
	assert.Equal(t, "new", v.Label)

	single := Event{Payload: []byte(`{"label":"only"}`)}
	require.NoError(t, single.UnmarshalCurrent(&v))
	assert.Equal(t, "only", v.Label)

	empty := Event{Payload: []byte(`[]`)}
	assert.ErrorIs(t, empty.UnmarshalCurrent(&v), ErrMalformedPayload)
}
