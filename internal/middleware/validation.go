package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "dataflow/internal/errors"
)

// defaultMaxJSONBody caps JSON request bodies; uploads are multipart and
// limited separately
const defaultMaxJSONBody = 1 << 20

// Validator decodes and validates request bodies using struct tags
type Validator struct {
	validate    *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewValidator creates a validator whose messages use JSON field names
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:    v,
		logger:      logger.With(slog.String("component", "validation")),
		maxBodySize: defaultMaxJSONBody,
	}
}

// DecodeJSON decodes the body of r into dst and validates it. Failures are
// InvalidInput errors.
func (v *Validator) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperrors.InvalidInput("request body is required")
	}
	body := http.MaxBytesReader(w, r.Body, v.maxBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.InvalidInputf("request body exceeds %d bytes", v.maxBodySize)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("request body is required")
		default:
			v.logger.DebugContext(r.Context(), "invalid JSON body", slog.String("error", err.Error()))
			return apperrors.InvalidInput("Request body contains invalid JSON")
		}
	}
	return v.ValidateStruct(dst)
}

// ValidateStruct validates s against its struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.New(apperrors.KindInvalidInput, "invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatValidationError(fe))
		fields = append(fields, fe.Field())
	}
	return apperrors.InvalidInput(strings.Join(messages, "; ")).
		WithContext("fields", fields)
}

// ContentTypeValidator rejects bodies whose content type is not one of
// contentTypes
func ContentTypeValidator(handler *apperrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			handler.HandleError(w, r, apperrors.InvalidInputf("unsupported content type %q", contentType).
				WithContext("allowed", contentTypes))
		})
	}
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
