package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/masquerade-labs/masquerade/internal/apperr"
	"github.com/masquerade-labs/masquerade/internal/domain"
)

// userResponse is the wire shape returned for a User: Salt and Hash
// never leave the service (spec §4.4 "Updates never return the
// secret").
type userResponse struct {
	UUID    string `json:"uuid"`
	Key     string `json:"key"`
	IsAdmin bool   `json:"is_admin"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{UUID: u.UUID, Key: u.Key, IsAdmin: u.IsAdmin}
}

type createUserRequest struct {
	Key     string `json:"key" validate:"required"`
	Secret  string `json:"secret" validate:"required"`
	IsAdmin bool   `json:"is_admin"`
}

// createUser handles `POST /users/` (admin only, spec §4.4 "Users").
func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	ctx := r.Context()
	if _, found, err := h.app.Users.Get(ctx, UsersCollection, req.Key); err != nil {
		RespondError(w, err)
		return
	} else if found {
		RespondError(w, apperr.New(apperr.Conflict, "user already exists"))
		return
	}

	saltB64, hashB64, err := h.app.Credentials.Hash(req.Secret)
	if err != nil {
		RespondError(w, apperr.Wrap(apperr.SerializationFailure, "failed to derive credential", err))
		return
	}

	user := domain.User{
		UUID:    uuid.NewString(),
		Key:     req.Key,
		Salt:    saltB64,
		Hash:    hashB64,
		IsAdmin: req.IsAdmin,
	}

	if _, _, err := h.app.Users.Upsert(ctx, UsersCollection, user.Key, user); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, toUserResponse(user))
}

// getUser handles `GET /users/{key}/`.
func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	user, found, err := h.app.Users.Get(r.Context(), UsersCollection, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !found {
		RespondError(w, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	RespondJSON(w, http.StatusOK, toUserResponse(user))
}

// listUsers handles `GET /users/`, sorted ascending by key (spec §8
// property 7).
func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Users.GetAll(r.Context(), UsersCollection)
	if err != nil {
		RespondError(w, err)
		return
	}

	out := make([]userResponse, 0, len(all))
	for _, u := range all {
		out = append(out, toUserResponse(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	RespondJSON(w, http.StatusOK, out)
}

type updateUserRequest struct {
	Secret  string `json:"secret"`
	IsAdmin *bool  `json:"is_admin"`
}

// updateUser handles `POST /users/{key}/`: the hash and salt are
// recomputed only when a non-empty replacement secret is supplied (spec
// §4.4).
func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req updateUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	ctx := r.Context()
	user, found, err := h.app.Users.Get(ctx, UsersCollection, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !found {
		RespondError(w, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	if req.Secret != "" {
		saltB64, hashB64, err := h.app.Credentials.Hash(req.Secret)
		if err != nil {
			RespondError(w, apperr.Wrap(apperr.SerializationFailure, "failed to derive credential", err))
			return
		}
		user.Salt = saltB64
		user.Hash = hashB64
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if _, _, err := h.app.Users.Upsert(ctx, UsersCollection, user.Key, user); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, toUserResponse(user))
}

// deleteUser handles `DELETE /users/{key}/`.
func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	prior, hadPrior, err := h.app.Users.Delete(r.Context(), UsersCollection, key)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !hadPrior {
		RespondError(w, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	RespondJSON(w, http.StatusOK, toUserResponse(prior))
}
