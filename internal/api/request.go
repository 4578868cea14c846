package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// validate is shared across handlers, following the corpus convention
// (2lar-b2/backend2/interfaces/http/rest) of one long-lived
// validator.Validate rather than constructing one per request.
var validate = validator.New()

// decodeAndValidate decodes r's JSON body into dst and runs struct-tag
// validation over it, reporting either failure as BadRequest (spec §7).
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.BadRequest, "malformed request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.BadRequest, "request validation failed", err)
	}
	return nil
}
