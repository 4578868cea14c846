package store

import "encoding/json"

// JSONCodec builds a Codec[V] from encoding/json, the wire format spec
// §4.2 mandates ("a domain value encodes as the bulk-string form of its
// JSON serialization"). Any V with a well-defined JSON representation
// (including one with custom MarshalJSON/UnmarshalJSON, as Flag has)
// works without further plumbing.
func JSONCodec[V any]() Codec[V] {
	return Codec[V]{
		Encode: func(v V) ([]byte, error) { return json.Marshal(v) },
		Decode: func(data []byte) (V, error) {
			var v V
			err := json.Unmarshal(data, &v)
			return v, err
		},
	}
}
