package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeDatabaseNotReady   Code = "DATABASE_NOT_READY"
	CodeGraphNotReady      Code = "GRAPH_NOT_READY"
)

// Sync run errors.
const (
	CodeRunNotFound      Code = "RUN_NOT_FOUND"
	CodeInvalidRunID     Code = "INVALID_RUN_ID"
	CodeRunListFailed    Code = "RUN_LIST_FAILED"
	CodeAccountRequired  Code = "ACCOUNT_REQUIRED"
	CodeUnknownModule    Code = "UNKNOWN_MODULE"
	CodeQueueUnavailable Code = "QUEUE_UNAVAILABLE"
	CodeEnqueueFailed    Code = "ENQUEUE_FAILED"
)
