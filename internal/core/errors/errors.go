package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpValidationError     = "validation_failed"
	HttpDuplicateEventError = "duplicate_event"
	HttpNotFoundError       = "not_found"
	HttpAmbiguousQueryError = "ambiguous_query"
	HttpUpstreamError       = "upstream_unavailable"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
