// Package apihttp holds the request, response and middleware helpers shared
// by the HTTP handlers.
package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	timeLayout   = time.RFC3339
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidRequest marks malformed or invalid request input.
var ErrInvalidRequest = errors.New("http: invalid request")

// DecodeJSON reads a JSON body into dst and validates its struct tags.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidRequest)
		}
		return fmt.Errorf("%w: invalid json: %v", ErrInvalidRequest, err)
	}
	return Validate(dst)
}

// Validate checks struct tags and reports the failing fields.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ParseTime accepts RFC3339 timestamps and YYYY-MM-DD dates (UTC midnight).
func ParseTime(key, value string) (time.Time, error) {
	if parsed, err := time.Parse(timeLayout, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD", ErrInvalidRequest, key)
}

// TimeQuery reads a required time query parameter.
func TimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	return ParseTime(key, value)
}

// OptionalTimeQuery reads a time query parameter, returning zero when absent.
func OptionalTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	return ParseTime(key, value)
}

// OptionalQuery returns a pointer to the query value or nil when absent.
func OptionalQuery(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}
