package api

import (
	"net/http"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// authenticate issues a signed token on successful basic-auth (spec
// §4.4 "Authenticate").
func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		RespondError(w, apperr.New(apperr.Unauthorized, "missing basic auth credentials"))
		return
	}

	users, err := h.app.Users.GetAll(r.Context(), UsersCollection)
	if err != nil {
		RespondError(w, err)
		return
	}

	user, found := users[username]
	if !found || !h.app.Credentials.Verify(password, user.Salt, user.Hash) {
		// Generic failure: don't distinguish unknown user from wrong
		// secret (spec §4.3 "prevents user enumeration").
		RespondError(w, apperr.New(apperr.Unauthorized, "invalid credentials"))
		return
	}

	token, err := h.app.Tokens.Issue(user.UUID)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}
