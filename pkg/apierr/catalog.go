package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}

func GraphNotReady() *Error {
	return New(CodeGraphNotReady, http.StatusServiceUnavailable, "Graph database not ready")
}

// --- Sync runs ---

func RunNotFound() *Error {
	return New(CodeRunNotFound, http.StatusNotFound, "Sync run not found")
}

func InvalidRunID() *Error {
	return New(CodeInvalidRunID, http.StatusBadRequest, "Invalid sync run ID")
}

func RunListFailed(cause error) *Error {
	return Wrap(CodeRunListFailed, http.StatusInternalServerError, "Failed to list sync runs", cause)
}

func AccountRequired() *Error {
	return New(CodeAccountRequired, http.StatusBadRequest, "account_id is required")
}

func UnknownModule(name string) *Error {
	return New(CodeUnknownModule, http.StatusBadRequest, "Unknown intel module: "+name)
}

func QueueUnavailable() *Error {
	return New(CodeQueueUnavailable, http.StatusServiceUnavailable, "Job queue is not configured")
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue sync job", cause)
}
