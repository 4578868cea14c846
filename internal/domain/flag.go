package domain

import (
	"encoding/json"
	"fmt"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// FlagValue is the tagged-union value a Flag carries (spec §3: "value
// (tagged variant; only boolean tag is currently defined)"). Modeling it
// as an interface rather than a single bool field keeps the wire shape
// externally tagged ({"bool": true}) so a future value kind doesn't need
// a breaking JSON schema change.
type FlagValue interface {
	Kind() string
	Equal(FlagValue) bool
}

// BoolValue is the only FlagValue constructor defined today.
type BoolValue bool

func (BoolValue) Kind() string { return "bool" }

func (v BoolValue) Equal(other FlagValue) bool {
	o, ok := other.(BoolValue)
	return ok && v == o
}

type flagValueWire struct {
	Bool *bool `json:"bool,omitempty"`
}

func marshalFlagValue(v FlagValue) ([]byte, error) {
	switch tv := v.(type) {
	case BoolValue:
		b := bool(tv)
		return json.Marshal(flagValueWire{Bool: &b})
	default:
		return nil, fmt.Errorf("domain: unsupported flag value kind %q", v.Kind())
	}
}

func unmarshalFlagValue(data []byte) (FlagValue, error) {
	var w flagValueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Bool != nil {
		return BoolValue(*w.Bool), nil
	}
	return nil, fmt.Errorf("domain: flag value carries no recognized tag")
}

// Flag is a single feature flag scoped to a FlagPath (spec §3).
type Flag struct {
	Key     string
	Value   FlagValue
	Version int
	Enabled bool
	Created int64
	Updated int64
}

type flagWire struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	Version int             `json:"version"`
	Enabled bool            `json:"enabled"`
	Created int64           `json:"created"`
	Updated int64           `json:"updated"`
}

func (f Flag) MarshalJSON() ([]byte, error) {
	valueJSON, err := marshalFlagValue(f.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(flagWire{
		Key:     f.Key,
		Value:   valueJSON,
		Version: f.Version,
		Enabled: f.Enabled,
		Created: f.Created,
		Updated: f.Updated,
	})
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	var w flagWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := unmarshalFlagValue(w.Value)
	if err != nil {
		return err
	}
	f.Key = w.Key
	f.Value = v
	f.Version = w.Version
	f.Enabled = w.Enabled
	f.Created = w.Created
	f.Updated = w.Updated
	return nil
}

// NewFlag constructs the initial record for a flag created by upsert
// when no prior record exists (spec §3 "created by upsert when absent").
func NewFlag(key string, value FlagValue, enabled bool, now int64) (Flag, error) {
	if key == "" {
		return Flag{}, apperr.EmptyKey()
	}
	return Flag{
		Key:     key,
		Value:   value,
		Version: 1,
		Enabled: enabled,
		Created: now,
		Updated: now,
	}, nil
}

// Apply mutates f in place to reflect an upsert against an existing
// record: the prior Created timestamp is preserved, Enabled always takes
// the new value, and Updated is refreshed and Version bumped only when
// Value actually changes (spec §3 invariant: "toggling or re-assigning an equal value is a
// no-op"; spec §4.4 "tolerates no-op toggles").
func (f *Flag) Apply(value FlagValue, enabled bool, now int64) {
	changed := !f.Value.Equal(value)
	f.Value = value
	f.Enabled = enabled
	if changed {
		f.Version++
		f.Updated = now
	}
}
