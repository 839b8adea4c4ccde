package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultErrorDetail = "request failed"

// APIError is the typed failure for any non-2xx response. Both the status
// code and the server-supplied detail are inspectable fields, not just
// message text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// IsAuthError reports whether the error carries HTTP 401.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// errorDetail extracts the "detail" field of an error body. Non-JSON bodies
// and bodies without a detail are tolerated and fall back to a generic
// message, the backend does not guarantee structured errors on every path.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Detail == "" {
		return defaultErrorDetail
	}
	return payload.Detail
}
