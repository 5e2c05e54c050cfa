package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clinicbook-io/clinicbook/libs/httpx"
)

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid json body")
		return v, false
	}
	return v, true
}
