package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = fmt.Errorf("%w: invalid json", model.ErrValidation)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		// Report fields by their JSON names.
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK writes a {success:true, ...} envelope.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, "ErrInvalidJSON"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "ErrValidation"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "ErrUnauthorized"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "ErrForbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "ErrConflict"
	case errors.Is(err, model.ErrOracleTimeout):
		return http.StatusGatewayTimeout, "ErrOracleTimeout"
	case errors.Is(err, model.ErrOracleUnavailable):
		return http.StatusBadGateway, "ErrOracleUnavailable"
	case errors.Is(err, model.ErrUnparsableEvaluation):
		return http.StatusInternalServerError, "ErrUnparsableEvaluation"
	}
	return http.StatusInternalServerError, "ErrInternal"
}

// writeError maps err onto a status code and a localized {success:false}
// body. Internal error text is logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := errorStatus(err)
	writeErrorMsg(w, r, err, status, msgID)
}

func writeErrorMsg(w http.ResponseWriter, r *http.Request, err error, status int, msgID string) {
	lg := LoggerFrom(r)
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		lg.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	var msg string
	if msgID == "ErrValidation" {
		msg = i18n.Td(r.Context(), msgID, map[string]any{"Detail": validationDetail(err)})
	} else {
		msg = i18n.T(r.Context(), msgID)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func validationDetail(err error) string {
	return strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": ")
}

// decodeJSON reads a JSON body into dst and runs struct validation on it.
// An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	if err := getValidator().Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return nil
}
