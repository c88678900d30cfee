package i18n

// Error message keys
const (
	ErrGeneric                  = "error_generic"
	ErrInvalidRequestBody       = "error_invalid_request_body"
	ErrNotFound                 = "error_not_found"
	ErrInvalidInput             = "error_invalid_input"
	ErrUnavailable              = "error_unavailable"
	ErrMissingQuery             = "error_missing_query"
	ErrQueryParseFailed         = "error_query_parse_failed"
	ErrOperationNotFound        = "error_operation_not_found"
	ErrQueryTooExpensive        = "error_query_too_expensive"
	ErrMalformedVariableBinding = "error_malformed_variable_binding"
	ErrSubscriptionsUnsupported = "error_subscriptions_unsupported"
	ErrMutationNotAllowed       = "error_mutation_not_allowed"
	ErrUnknownRootField         = "error_unknown_root_field"
	ErrUnknownFragment          = "error_unknown_fragment"
	ErrUpstreamFailed           = "error_upstream_failed"
)
