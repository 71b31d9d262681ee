package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/garnizeh/devcompanion/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorDetail struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
}

type errorBody struct {
	Error  errorDetail `json:"error"`
	Detail string      `json:"detail"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError renders err in the error envelope. Errors outside the apperr
// taxonomy are reported as internal errors.
func writeError(w http.ResponseWriter, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		logger.Error("internal error", slog.Any("err", err))
	}
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	writeJSON(w, errorBody{
		Error: errorDetail{
			Type:       string(e.Kind),
			Message:    e.Message,
			Details:    e.Details,
			RetryAfter: e.RetryAfter,
		},
		Detail: e.Message,
	}, e.Status())
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

// bind decodes the JSON body into dst and validates it. An empty body
// leaves dst at its zero value.
func bind(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.InvalidInput(fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return apperr.InvalidInput("unexpected trailing data")
	}

	if err := getValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			e := apperr.InvalidInput(fmt.Sprintf("%s failed the '%s' check", fe.Field(), fe.Tag()))
			e.Details = map[string]any{"field": fe.Field()}
			return e
		}
		return apperr.Internal(err)
	}
	return nil
}
