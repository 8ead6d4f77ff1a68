package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/studio"
)

// maxBodyBytes bounds request bodies; reference images arrive inline as
// data URLs.
const maxBodyBytes = 32 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. The clientMsg is returned to the
// caller; internalDetails are only logged.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// writeError maps a service error to its status. Causes are logged for
// server errors only.
func writeError(w http.ResponseWriter, err error) {
	se := studio.AsError(err)
	status := se.Kind.Status()
	if status >= http.StatusInternalServerError && se.Err != nil {
		httpError(w, status, se.Message, se.Err.Error())
		return
	}
	httpError(w, status, se.Message)
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected so typos
// in enum-bearing briefs surface as errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		httpError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}
