package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrips(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, codecName, c.Name())

	env := Envelope{ID: "abc", Method: MethodPing}
	data, err := c.Marshal(env)
	require.NoError(t, err)

	var out Envelope
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, env, out)
}

func TestCorrelationIDsAreUniqueAndNonEmpty(t *testing.T) {
	a := newCorrelationID()
	b := newCorrelationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestEncodeDecodeArgsRoundTrip(t *testing.T) {
	in := resAddArg{Name: "r1", Group: "g1"}
	raw, err := encodeArgs(in)
	require.NoError(t, err)

	var out resAddArg
	require.NoError(t, decodeArgs(raw, &out))
	assert.Equal(t, in, out)
}

func TestEncodeDecodeArgsNilIsNoOp(t *testing.T) {
	raw, err := encodeArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	var out resAddArg
	require.NoError(t, decodeArgs(raw, &out))
	assert.Zero(t, out)
}
