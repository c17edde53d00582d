package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/middleware"
	"github.com/dukerupert/chorepoints/internal/observability"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// errorBody is the JSON shape of every error response. Assignment is only
// set for conflicts, so clients can resync without another request.
type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Assignment any    `json:"assignment,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError converts err into a {code, message} response. Anything that
// is not a domain error is logged, reported, and hidden behind a generic
// 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ae := apperr.As(err)
	if ae == nil || ae.Kind == apperr.KindInternal {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		observability.CaptureErr(r.Context(), err, map[string]string{
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		})
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: string(apperr.KindInternal), Message: "internal error"})
		return
	}

	body := errorBody{Code: string(ae.Kind), Message: ae.Message}
	if ae.Kind == apperr.KindConflict {
		body.Assignment = ae.Entity
	}
	writeJSON(w, apperr.Status(ae), body)
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// decodeJSON reads the body into dst and validates it. An empty body is
// allowed when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid request")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return apperr.Validation("%s is required", fe.Field())
	case "min", "gte":
		return apperr.Validation("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return apperr.Validation("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return apperr.Validation("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return apperr.Validation("%s is invalid", fe.Field())
	}
}

// requireFamily reports a not-found for resources outside the caller's
// family, so their existence is not revealed.
func requireFamily(callerFamily, resourceFamily int64, what string) error {
	if callerFamily != resourceFamily {
		return apperr.NotFound(what)
	}
	return nil
}

func intQuery(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("%s must be a positive integer", name)
	}
	if n > max {
		n = max
	}
	return n, nil
}

