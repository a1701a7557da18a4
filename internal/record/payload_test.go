package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPayloadSortedKeys(t *testing.T) {
	p := Payload{
		"zebra": 1,
		"alpha": "a<b>&c",
		"beta":  map[string]any{"y": true, "x": nil},
	}

	out, err := MarshalPayload(p)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a<b>&c","beta":{"x":null,"y":true},"zebra":1}`, string(out))
}

func TestMarshalPayloadNFC(t *testing.T) {
	// "e" + combining acute accent normalises to U+00E9.
	out, err := MarshalPayload(Payload{"name": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"caf\u00e9\"}", string(out))
}

func TestMarshalPayloadUTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16 code units (the emoji encodes as a 0xD83D surrogate).
	p := Payload{"\U0001F600": 1, "\uff61": 2}
	out, err := MarshalPayload(p)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uff61\":2}", string(out))
}

func TestMarshalPayloadRejectsNonFinite(t *testing.T) {
	_, err := MarshalPayload(Payload{"health": math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health")
}

func TestMarshalPayloadNil(t *testing.T) {
	out, err := MarshalPayload(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestUnmarshalPayloadNumbers(t *testing.T) {
	p, err := UnmarshalPayload([]byte(`{"count":3,"ratio":0.5,"items":[1,{"n":2}]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(3), p["count"])
	assert.Equal(t, 0.5, p["ratio"])
	items := p["items"].([]any)
	assert.Equal(t, int64(1), items[0])
	assert.Equal(t, int64(2), items[1].(map[string]any)["n"])
}

func TestPayloadAccessors(t *testing.T) {
	p := Payload{
		KeyBefore: map[string]any{"block": "stone"},
		"note":    "hi",
	}

	before, ok := p.Map(KeyBefore)
	require.True(t, ok)
	assert.Equal(t, "stone", before["block"])

	_, ok = p.Map("note")
	assert.False(t, ok)

	s, ok := p.String("note")
	require.True(t, ok)
	assert.Equal(t, "hi", s)
}
