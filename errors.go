package dataeditor

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeModel        ErrorType = "model"
	ErrorTypeAdapter      ErrorType = "adapter"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error codes
const (
	ErrCodeSchemaInvalid       = "SCHEMA_INVALID"
	ErrCodeSchemaNotFound      = "SCHEMA_NOT_FOUND"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeModelNotFound       = "MODEL_NOT_FOUND"
	ErrCodeModelOperation      = "MODEL_OPERATION_FAILED"
	ErrCodeEntryNotFound       = "ENTRY_NOT_FOUND"
	ErrCodeEntryAlreadyExists  = "ENTRY_ALREADY_EXISTS"
	ErrCodeStorageFailed       = "STORAGE_FAILED"
	ErrCodeRemoteRequestFailed = "REMOTE_REQUEST_FAILED"
	ErrCodeUnauthorizedAccess  = "UNAUTHORIZED_ACCESS"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// EditorError is the error type returned by validators, data models and adapters.
// Message is safe to show to API clients.
type EditorError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Model   string         `json:"model,omitempty"`
	Key     string         `json:"key,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *EditorError) Error() string {
	prefix := fmt.Sprintf("[%s:%s]", e.Type, e.Code)
	switch {
	case e.Model != "" && e.Key != "":
		prefix += fmt.Sprintf(" entry %s/%s:", e.Model, e.Key)
	case e.Model != "":
		prefix += fmt.Sprintf(" model %s:", e.Model)
	case e.Field != "":
		prefix += fmt.Sprintf(" field '%s':", e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *EditorError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail to an EditorError
func (e *EditorError) WithDetail(key string, value any) *EditorError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to an EditorError
func (e *EditorError) WithCause(cause error) *EditorError {
	e.Cause = cause
	return e
}

// WithModel adds model context to an EditorError
func (e *EditorError) WithModel(model string) *EditorError {
	e.Model = model
	return e
}

// WithKey adds entry key context to an EditorError
func (e *EditorError) WithKey(key string) *EditorError {
	e.Key = key
	return e
}

// WithField adds field context to an EditorError
func (e *EditorError) WithField(field string) *EditorError {
	e.Field = field
	return e
}

// NewEditorError creates a new EditorError
func NewEditorError(errorType ErrorType, code, message string) *EditorError {
	return &EditorError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewSchemaError reports a schema that cannot be used to build a validator.
func NewSchemaError(message string) *EditorError {
	return NewEditorError(ErrorTypeSchema, ErrCodeSchemaInvalid, message)
}

// NewSchemaNotFoundError creates a schema not found error
func NewSchemaNotFoundError(schemaID string) *EditorError {
	return NewEditorError(ErrorTypeSchema, ErrCodeSchemaNotFound,
		fmt.Sprintf("schema '%s' not found", schemaID)).WithModel(schemaID)
}

// NewValidationError creates a validation error
func NewValidationError(field, message string) *EditorError {
	return NewEditorError(ErrorTypeValidation, ErrCodeValidationFailed, message).WithField(field)
}

// NewModelError creates a data model error
func NewModelError(message string) *EditorError {
	return NewEditorError(ErrorTypeModel, ErrCodeModelOperation, message)
}

// NewUnknownModelError is returned when a request names a model that is not configured.
func NewUnknownModelError(model string) *EditorError {
	return NewEditorError(ErrorTypeModel, ErrCodeModelNotFound,
		fmt.Sprintf("model %s does not exist.", model)).WithModel(model)
}

// NewAdapterError creates a storage adapter error
func NewAdapterError(message string, cause error) *EditorError {
	return NewEditorError(ErrorTypeAdapter, ErrCodeStorageFailed, message).WithCause(cause)
}

// NewEntryNotFoundError reports a key that matches no stored record.
func NewEntryNotFoundError(key string) *EditorError {
	return NewEditorError(ErrorTypeAdapter, ErrCodeEntryNotFound,
		fmt.Sprintf("entry with key %s does not exist.", key)).WithKey(key)
}

// NewEntryExistsError reports a key collision on create or rename.
func NewEntryExistsError(key string) *EditorError {
	return NewEditorError(ErrorTypeAdapter, ErrCodeEntryAlreadyExists,
		fmt.Sprintf("entry with key %s already exists.", key)).WithKey(key)
}

// NewRemoteStatusError reports a non-success status from a remote collection.
func NewRemoteStatusError(status int) *EditorError {
	return NewEditorError(ErrorTypeAdapter, ErrCodeRemoteRequestFailed,
		fmt.Sprintf("request failed with status code %d", status)).WithDetail("status", status)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() *EditorError {
	return NewEditorError(ErrorTypeUnauthorized, ErrCodeUnauthorizedAccess, "No authorization")
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *EditorError {
	return NewEditorError(ErrorTypeInternal, ErrCodeInternalError, message).WithCause(cause)
}

// ErrorTypeOf returns the category of the first EditorError in err's chain,
// or ErrorTypeInternal when there is none.
func ErrorTypeOf(err error) ErrorType {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Type
	}
	return ErrorTypeInternal
}

// ErrorMessage returns the client-facing message of err.
func ErrorMessage(err error) string {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}

// IsSchemaError checks if an error is a schema error
func IsSchemaError(err error) bool {
	return err != nil && ErrorTypeOf(err) == ErrorTypeSchema
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return err != nil && ErrorTypeOf(err) == ErrorTypeValidation
}

// IsModelError checks if an error is a data model error
func IsModelError(err error) bool {
	return err != nil && ErrorTypeOf(err) == ErrorTypeModel
}

// IsAdapterError checks if an error is a storage adapter error
func IsAdapterError(err error) bool {
	return err != nil && ErrorTypeOf(err) == ErrorTypeAdapter
}

// IsEntryNotFoundError checks if an error reports a missing entry
func IsEntryNotFoundError(err error) bool {
	var ee *EditorError
	return errors.As(err, &ee) && ee.Code == ErrCodeEntryNotFound
}
