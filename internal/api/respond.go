package api

import (
	"encoding/json"
	"net/http"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

func unauthorized() error { return apperr.New(apperr.Unauthorized, "missing or invalid credentials") }
func forbidden() error    { return apperr.New(apperr.Forbidden, "insufficient privilege") }

// RespondJSON writes v as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError renders any error through the single apperr.Status
// mapping (spec §7): every handler returns a plain error and this is
// the one place that decides the HTTP status and body.
func RespondError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
