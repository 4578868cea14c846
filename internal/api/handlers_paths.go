package api

import (
	"net/http"
	"sort"

	"github.com/masquerade-labs/masquerade/internal/apperr"
	"github.com/masquerade-labs/masquerade/internal/domain"
)

type createPathRequest struct {
	App string `json:"app" validate:"required"`
	Env string `json:"env" validate:"required"`
}

// createPath handles `POST /path/` (spec §4.4 "Paths"): owner is always
// the authenticated caller, and the scope is stored under the
// well-known "paths" collection keyed by its flattened form so a second
// create of the same scope is rejected as a duplicate.
func (h *handlers) createPath(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		RespondError(w, apperr.New(apperr.Unauthorized, "missing authenticated user"))
		return
	}

	var req createPathRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	path, err := domain.NewFlagPath(user.UUID, req.App, req.Env)
	if err != nil {
		RespondError(w, err)
		return
	}

	ctx := r.Context()
	field := path.Flatten()
	if _, found, err := h.app.Paths.Get(ctx, PathsCollection, field); err != nil {
		RespondError(w, err)
		return
	} else if found {
		RespondError(w, apperr.New(apperr.Conflict, "path already exists"))
		return
	}

	if _, _, err := h.app.Paths.Upsert(ctx, PathsCollection, field, path); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, path)
}

// listPaths handles `GET /paths/`, returning every scope the calling
// user has created (spec §4.4 "list returns all scopes the current user
// has created").
func (h *handlers) listPaths(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		RespondError(w, apperr.New(apperr.Unauthorized, "missing authenticated user"))
		return
	}

	all, err := h.app.Paths.GetAll(r.Context(), PathsCollection)
	if err != nil {
		RespondError(w, err)
		return
	}

	out := make([]domain.FlagPath, 0, len(all))
	for _, p := range all {
		if p.Owner == user.UUID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flatten() < out[j].Flatten() })

	RespondJSON(w, http.StatusOK, out)
}
