package ynab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is an error reported by the remote ledger.
type APIError struct {
	StatusCode int    `json:"-"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Name == "" && e.Detail == "" {
		return fmt.Sprintf("ynab: http %d", e.StatusCode)
	}
	return fmt.Sprintf("ynab: http %d: %s: %s", e.StatusCode, e.Name, e.Detail)
}

// IsRateLimited reports whether err is the server refusing further requests this hour.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether the token was rejected.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error *APIError `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		apiErr.ID = env.Error.ID
		apiErr.Name = env.Error.Name
		apiErr.Detail = env.Error.Detail
	}
	return apiErr
}
