// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"gymhub.np/internal/apperrors"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string     `json:"error"`
	Details string     `json:"details,omitempty"`
	Fields  url.Values `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteError translates err into a status code and an ErrorResponse. The cause of
// an upstream failure is always included; withDetails adds it for the other kinds.
func WriteError(w http.ResponseWriter, r *http.Request, err error, withDetails bool) {
	status := apperrors.HTTPStatus(err)
	resp := ErrorResponse{Error: "internal server error"}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Fields = appErr.Fields
		if appErr.Kind == apperrors.KindUpstream || withDetails {
			resp.Details = appErr.Details()
		}
	} else {
		resp.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON reads a JSON body of at most 1 MiB into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Validation("request body is too large")
		}
		return apperrors.Validation("malformed JSON body")
	}
	return nil
}

// PageParams reads ?page= and ?limit=, clamping limit to max.
func PageParams(r *http.Request, defaultLimit, max int) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > max {
		limit = max
	}
	return page, limit
}
