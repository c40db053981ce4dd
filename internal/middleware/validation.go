package middleware

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "rentroll/internal/errors"
)

// ValidationMiddleware validates request payloads using struct tags
type ValidationMiddleware struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewValidationMiddleware creates a validation middleware with custom validators
func NewValidationMiddleware(logger *slog.Logger) *ValidationMiddleware {
	v := validator.New()

	v.RegisterValidation("iso8601", isISO8601)
	v.RegisterValidation("spreadsheet", isSpreadsheetFilename)
	v.RegisterValidation("safe_filename", isSafeFilename)

	return &ValidationMiddleware{
		validator: v,
		logger:    logger,
	}
}

// ValidateStruct validates a struct and returns a formatted error
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	if err := m.validator.Struct(v); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			messages := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				messages = append(messages, m.formatValidationError(fieldErr))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
		}
		return err
	}
	return nil
}

func (m *ValidationMiddleware) formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "iso8601":
		return fmt.Sprintf("%s must be an ISO 8601 date", err.Field())
	case "spreadsheet":
		return fmt.Sprintf("%s must be an .xlsx or .xls file", err.Field())
	case "safe_filename":
		return fmt.Sprintf("%s contains invalid path characters", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag())
	}
}

// ContentTypeValidator ensures requests carry one of the allowed content types
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead ||
				r.Method == http.MethodOptions || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil {
				apierrors.WriteError(w, apierrors.ErrInvalidRequest)
				return
			}

			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierrors.WriteError(w, apierrors.New(http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				fmt.Sprintf("Content type must be one of: %s", strings.Join(contentTypes, ", "))))
		})
	}
}

// isISO8601 validates ISO 8601 date strings (date-only or full timestamp)
func isISO8601(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// isSpreadsheetFilename validates that a filename carries an Excel extension
func isSpreadsheetFilename(fl validator.FieldLevel) bool {
	ext := strings.ToLower(filepath.Ext(fl.Field().String()))
	return ext == ".xlsx" || ext == ".xlsm" || ext == ".xls"
}

var safeFilenamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\- ()]+$`)

// isSafeFilename rejects filenames with path separators or traversal sequences
func isSafeFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	return safeFilenamePattern.MatchString(name)
}

// QueryParamValidator validates common query parameter shapes
type QueryParamValidator struct {
	logger *slog.Logger
}

// NewQueryParamValidator creates a query parameter validator
func NewQueryParamValidator(logger *slog.Logger) *QueryParamValidator {
	return &QueryParamValidator{logger: logger}
}

// ValidateInt extracts and validates an integer query parameter within bounds
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max, defaultValue int) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		apierrors.WriteError(w, apierrors.ErrValidation(param,
			fmt.Sprintf("must be an integer between %d and %d", min, max)))
		return 0, false
	}
	return value, true
}

// ValidateEnum extracts and validates an enumerated query parameter
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}

	for _, candidate := range allowed {
		if raw == candidate {
			return raw, true
		}
	}

	apierrors.WriteError(w, apierrors.ErrValidation(param,
		fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", "))))
	return "", false
}
