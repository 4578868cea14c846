package domain

import (
	"fmt"
	"strings"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// FlagPath is the three-part scope (owner, app, env) identifying a flag
// namespace (spec §3). Its flattened form, used as the backing-store
// collection key, is derived by Flatten on each call; it is not stored on
// the struct.
type FlagPath struct {
	Owner string `json:"owner"`
	App   string `json:"app"`
	Env   string `json:"env"`
}

// NewFlagPath validates and constructs a FlagPath from its three parts.
func NewFlagPath(owner, app, env string) (FlagPath, error) {
	p := FlagPath{Owner: owner, App: app, Env: env}
	if err := p.validate(); err != nil {
		return FlagPath{}, err
	}
	return p, nil
}

func (p FlagPath) validate() error {
	if p.Owner == "" || p.App == "" || p.Env == "" {
		return apperr.New(apperr.BadRequest, "owner, app and env must all be non-empty")
	}
	if strings.Contains(p.Owner, ":") || strings.Contains(p.App, ":") {
		return apperr.New(apperr.BadRequest, "owner and app must not contain ':'")
	}
	return nil
}

// Flatten renders the canonical "owner:app:env" form used as the
// backing-store hash key (spec §3, §6).
func (p FlagPath) Flatten() string {
	return fmt.Sprintf("%s:%s:%s", p.Owner, p.App, p.Env)
}

// ParseFlagPath is the inverse of Flatten; round-trip is total for any
// FlagPath produced by NewFlagPath (spec §3 invariant).
func ParseFlagPath(flat string) (FlagPath, error) {
	parts := strings.SplitN(flat, ":", 3)
	if len(parts) != 3 {
		return FlagPath{}, apperr.New(apperr.BadRequest, "malformed flag path: "+flat)
	}
	return NewFlagPath(parts[0], parts[1], parts[2])
}
