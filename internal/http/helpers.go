package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"financas/internal/core"
	"financas/internal/extract"
	"financas/internal/log"
	"financas/internal/report"
	"financas/internal/services"
	"financas/internal/storage"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, extract.ErrEmptyText),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, report.ErrInvalidRequest),
		errors.Is(err, report.ErrMissingCompare):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, core.ErrInstallmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInstallmentPaid),
		errors.Is(err, core.ErrInstallmentUnpaid),
		errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrImportUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, extract.ErrEmptyResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs and writes err. Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.LogError(r.Context(), "Request failed", err, op, log.FieldPath, r.URL.Path)
		writeJSON(w, status, errorBody{Error: http.StatusText(status)})
		return
	}
	logger.WarnContext(r.Context(), "Request rejected",
		log.FieldOperation, op, log.FieldError, err.Error(), log.FieldStatusCode, status)

	body := errorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body = errorBody{Field: ve.Field, Error: ve.Err.Error()}
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return &core.ValidationError{Field: "amount", Err: err}
		}
		if errors.Is(err, core.ErrInvalidDate) {
			return &core.ValidationError{Field: "date", Err: err}
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// pathInt parses a positive integer path value.
func pathInt(r *http.Request, name string) (int, error) {
	v := r.PathValue(name)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
