package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserJSONRoundTrip covers spec §8's round-trip law for User:
// encode then decode is the identity.
func TestUserJSONRoundTrip(t *testing.T) {
	u := User{UUID: "u-1", Key: "alice", Salt: "c2FsdA==", Hash: "aGFzaA==", IsAdmin: true}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var decoded User
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, u, decoded)
}
