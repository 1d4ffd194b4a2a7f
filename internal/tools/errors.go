package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/pagerange"
	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/storage"
)

var (
	errBusy        = errors.New("server is busy, try again shortly")
	errRateLimited = errors.New("too many requests, slow down")
)

// requestError is a malformed request: bad form encoding, missing fields.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps an error to the HTTP status the client sees.
func statusFor(err error) int {
	var (
		reqErr   *requestError
		rangeErr *pagerange.ValidationError
		optErr   *pdfops.ValidationError
		valErrs  validator.ValidationErrors
		tooLarge *http.MaxBytesError
		typeErr  *filetype.UnsupportedError
		fmtErr   *pdfops.FormatError
		docErr   *pdfops.DocumentError
	)
	switch {
	case errors.Is(err, errBusy), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr), errors.As(err, &rangeErr), errors.As(err, &optErr), errors.As(err, &valErrs):
		return http.StatusBadRequest
	case errors.As(err, &typeErr), errors.As(err, &fmtErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &docErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func resultLabel(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rejected"
	case status >= 500:
		return "error"
	default:
		return "invalid"
	}
}

func errorMessage(err error, status int) string {
	if status >= 500 {
		return http.StatusText(status)
	}
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		parts := make([]string, 0, len(valErrs))
		for _, fe := range valErrs {
			if fe.Param() != "" {
				parts = append(parts, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s: must satisfy %s", fe.Field(), fe.Tag()))
			}
		}
		return "invalid options: " + strings.Join(parts, "; ")
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return w.Write(append(b, '\n'))
}

func writeError(w http.ResponseWriter, status int, err error) {
	_, _ = writeJSON(w, status, map[string]string{"error": errorMessage(err, status)})
}
