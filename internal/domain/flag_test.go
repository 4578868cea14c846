package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagJSONRoundTrip(t *testing.T) {
	f, err := NewFlag("dark_mode", BoolValue(true), true, 1000)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"dark_mode","value":{"bool":true},"version":1,"enabled":true,"created":1000,"updated":1000}`, string(data))

	var decoded Flag
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, f, decoded)
}

func TestNewFlagRejectsEmptyKey(t *testing.T) {
	_, err := NewFlag("", BoolValue(true), true, 1000)
	require.Error(t, err)
}

func TestNewFlagInvariants(t *testing.T) {
	f, err := NewFlag("k", BoolValue(false), false, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Version)
	assert.Equal(t, f.Created, f.Updated)
}

func TestApplyBumpsVersionOnValueChange(t *testing.T) {
	f, _ := NewFlag("k", BoolValue(true), true, 1000)

	f.Apply(BoolValue(false), true, 2000)

	assert.Equal(t, 2, f.Version)
	assert.Equal(t, int64(2000), f.Updated)
	assert.Equal(t, int64(1000), f.Created)
	assert.Equal(t, BoolValue(false), f.Value)
}

func TestApplyIsNoOpWhenValueUnchanged(t *testing.T) {
	f, _ := NewFlag("k", BoolValue(true), true, 1000)

	f.Apply(BoolValue(true), false, 2000)

	assert.Equal(t, 1, f.Version, "re-assigning an equal value must not bump version")
	assert.Equal(t, int64(1000), f.Updated, "a no-op apply must not refresh Updated")
	assert.False(t, f.Enabled, "Enabled still reflects the latest call even on a value no-op")
}

func TestApplyPreservesCreatedAcrossMultipleUpdates(t *testing.T) {
	f, _ := NewFlag("k", BoolValue(true), true, 1000)
	f.Apply(BoolValue(false), true, 2000)
	f.Apply(BoolValue(true), true, 3000)

	assert.Equal(t, int64(1000), f.Created)
	assert.Equal(t, 3, f.Version)
}
