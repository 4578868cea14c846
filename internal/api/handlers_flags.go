package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/masquerade-labs/masquerade/internal/apperr"
	"github.com/masquerade-labs/masquerade/internal/domain"
)

// flagScope resolves the (owner, app, env) FlagPath for a flag request:
// owner is always the authenticated caller's uuid, never a URL
// parameter, so a user can never observe or mutate another user's flags
// regardless of the {app}/{env} in the URL (spec §4.4 "Authorization").
func (h *handlers) flagScope(r *http.Request) (domain.FlagPath, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return domain.FlagPath{}, apperr.New(apperr.Unauthorized, "missing authenticated user")
	}
	app := chi.URLParam(r, "app")
	env := chi.URLParam(r, "env")
	return domain.NewFlagPath(user.UUID, app, env)
}

type createFlagRequest struct {
	Key     string `json:"key" validate:"required"`
	Value   bool   `json:"value"`
	Enabled bool   `json:"enabled"`
}

type updateFlagRequest struct {
	Value   bool `json:"value"`
	Enabled bool `json:"enabled"`
}

// createFlag handles `POST /{app}/{env}/flag/` (spec §4.4 "Flags"): an
// empty key or a key already present in the scope is rejected before any
// write reaches the Tiered Store.
func (h *handlers) createFlag(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req createFlagRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	ctx := r.Context()
	if _, found, err := h.app.Flags.Get(ctx, path, req.Key); err != nil {
		RespondError(w, err)
		return
	} else if found {
		RespondError(w, apperr.New(apperr.Conflict, "flag already exists"))
		return
	}

	flag, err := domain.NewFlag(req.Key, domain.BoolValue(req.Value), req.Enabled, time.Now().Unix())
	if err != nil {
		RespondError(w, err)
		return
	}

	if _, _, err := h.app.Flags.Upsert(ctx, path, flag.Key, flag); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, flag)
}

// getFlag handles `GET /{app}/{env}/flag/{key}/`.
func (h *handlers) getFlag(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	key := chi.URLParam(r, "key")

	flag, found, err := h.app.Flags.Get(r.Context(), path, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !found {
		RespondError(w, apperr.New(apperr.NotFound, "flag not found"))
		return
	}

	RespondJSON(w, http.StatusOK, flag)
}

// updateFlag handles `POST /{app}/{env}/flag/{key}/`: the prior Created
// timestamp is preserved and Version bumps only when Value actually
// changes (spec §3, §4.4 "tolerates no-op toggles").
func (h *handlers) updateFlag(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	key := chi.URLParam(r, "key")

	var req updateFlagRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	ctx := r.Context()
	flag, found, err := h.app.Flags.Get(ctx, path, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !found {
		RespondError(w, apperr.New(apperr.NotFound, "flag not found"))
		return
	}

	flag.Apply(domain.BoolValue(req.Value), req.Enabled, time.Now().Unix())

	if _, _, err := h.app.Flags.Upsert(ctx, path, flag.Key, flag); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, flag)
}

// deleteFlag handles `DELETE /{app}/{env}/flag/{key}/`.
func (h *handlers) deleteFlag(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	key := chi.URLParam(r, "key")

	prior, hadPrior, err := h.app.Flags.Delete(r.Context(), path, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !hadPrior {
		RespondError(w, apperr.New(apperr.NotFound, "flag not found"))
		return
	}

	RespondJSON(w, http.StatusOK, prior)
}

// listFlags handles `GET /{app}/{env}/flags/`, returning flags sorted
// ascending by key (spec §8 property 7).
func (h *handlers) listFlags(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	all, err := h.app.Flags.GetAll(r.Context(), path)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, sortedFlags(all))
}

// sortedFlags renders a (key -> Flag) snapshot as a slice sorted
// ascending by key, shared by listFlags and the flag stream handler.
func sortedFlags(all map[string]domain.Flag) []domain.Flag {
	out := make([]domain.Flag, 0, len(all))
	for _, f := range all {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
