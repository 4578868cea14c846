// Package api implements the request-handling layer of spec §4.4: thin
// HTTP adapters over the Tiered Store, following the corpus's chi-based
// router/handler layout (2lar-b2/backend2/interfaces/http/rest).
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/masquerade-labs/masquerade/internal/auth"
	"github.com/masquerade-labs/masquerade/internal/domain"
	"github.com/masquerade-labs/masquerade/internal/store"
)

// FlagsStore holds flags scoped by (owner, app, env).
type FlagsStore = store.Store[domain.FlagPath, domain.Flag]

// PathsStore holds the flat set of scopes each user has created, under
// the well-known collection "paths".
type PathsStore = store.Store[store.CollectionPath, domain.FlagPath]

// UsersStore holds User records under the well-known collection "users".
type UsersStore = store.Store[store.CollectionPath, domain.User]

// PathsCollection and UsersCollection are the constant collection names
// spec §6 assigns the paths/users hashes.
const (
	PathsCollection = store.CollectionPath("paths")
	UsersCollection = store.CollectionPath("users")
)

// App bundles everything a handler needs: the three Tiered Store
// instances, the Credential Service, and the logger.
type App struct {
	Flags       *FlagsStore
	Paths       *PathsStore
	Users       *UsersStore
	Tokens      auth.Tokens
	Credentials auth.Credentials
	Log         *zap.Logger
}

func (a *App) lookupUser(ctx context.Context, uuidValue string) (*domain.User, bool, error) {
	all, err := a.Users.GetAll(ctx, UsersCollection)
	if err != nil {
		return nil, false, err
	}
	for _, u := range all {
		u := u
		if u.UUID == uuidValue {
			return &u, true, nil
		}
	}
	return nil, false, nil
}
