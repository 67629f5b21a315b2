package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// ErrorResponse is the failure envelope every gateway route returns.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Status   int    `json:"status,omitempty"`
	RawError any    `json:"rawError,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes {success: false, error: msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// HandleError maps an error to the appropriate HTTP status and writes it.
// Backend HTTP errors keep their status; everything else is a 502.
func HandleError(w http.ResponseWriter, err error) {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.Kind == core.KindHTTP && apiErr.Status >= 400 {
			status = apiErr.Status
		}
		WriteJSON(w, status, ErrorResponse{Success: false, Error: apiErr.Message, Status: apiErr.Status})
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
