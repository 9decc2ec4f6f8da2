package errs

import "fmt"

// CatalogFetchError means the remote tool catalog was unreachable or
// returned something unusable.
type CatalogFetchError struct {
	ErrorMessage
	Err error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *CatalogFetchError) Unwrap() error { return e.Err }

func NewCatalogFetchError(err error) *CatalogFetchError {
	return &CatalogFetchError{
		ErrorMessage: ErrorMessage{Message: "failed to fetch tool catalog"},
		Err:          err,
	}
}

// IntentResolutionError carries the raw completion text so a bad
// selection can be diagnosed from the logs.
type IntentResolutionError struct {
	ErrorMessage
	Raw string
	Err error
}

func (e *IntentResolutionError) Unwrap() error { return e.Err }

func NewIntentResolutionError(message, raw string, err error) *IntentResolutionError {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &IntentResolutionError{
		ErrorMessage: ErrorMessage{Message: message},
		Raw:          raw,
		Err:          err,
	}
}

type ToolInvocationError struct {
	ErrorMessage
	Tool string
	Err  error
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

func NewToolInvocationError(tool string, err error) *ToolInvocationError {
	return &ToolInvocationError{
		ErrorMessage: ErrorMessage{Message: err.Error()},
		Tool:         tool,
		Err:          err,
	}
}

// FormattingError is absorbed by the orchestrator, which switches to the
// rule-based formatter.
type FormattingError struct {
	ErrorMessage
	Timeout bool
	Err     error
}

func (e *FormattingError) Unwrap() error { return e.Err }

func NewFormattingError(err error) *FormattingError {
	return &FormattingError{
		ErrorMessage: ErrorMessage{Message: fmt.Sprintf("response formatting failed: %v", err)},
		Err:          err,
	}
}

func NewFormattingTimeout(after fmt.Stringer, err error) *FormattingError {
	return &FormattingError{
		ErrorMessage: ErrorMessage{Message: fmt.Sprintf("response formatting timed out after %s", after)},
		Timeout:      true,
		Err:          err,
	}
}

// PersistenceError is logged, never returned to a caller of the query API.
type PersistenceError struct {
	ErrorMessage
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistenceError(sessionID string, err error) *PersistenceError {
	return &PersistenceError{
		ErrorMessage: ErrorMessage{Message: "failed to persist session context"},
		SessionID:    sessionID,
		Err:          err,
	}
}
