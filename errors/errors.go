package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the pipeline stage class of an error
type ErrorType string

const (
	// Source errors
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypeOrientation ErrorType = "orientation"

	// Transformation errors
	ErrorTypeFilter  ErrorType = "filter"
	ErrorTypeInvalid ErrorType = "invalid"

	// Output errors
	ErrorTypeEncode ErrorType = "encode"

	// System errors
	ErrorTypeCanceled ErrorType = "canceled"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error codes for specific scenarios
const (
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeSourceTooLarge    = "SOURCE_TOO_LARGE"
	CodeInvalidCropRegion = "INVALID_CROP_REGION"
	CodeInvalidDimensions = "INVALID_DIMENSIONS"
	CodeUnknownFilter     = "UNKNOWN_FILTER"
	CodeTargetNotWritable = "TARGET_NOT_WRITABLE"
)

// AppError represents a structured pipeline error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
}

// Sentinels for errors.Is. Matching is by type, and by code when the
// sentinel carries one.
var (
	ErrDecode            = &AppError{Type: ErrorTypeDecode}
	ErrFilter            = &AppError{Type: ErrorTypeFilter}
	ErrEncode            = &AppError{Type: ErrorTypeEncode}
	ErrCanceled          = &AppError{Type: ErrorTypeCanceled}
	ErrInvalidCropRegion = &AppError{Type: ErrorTypeFilter, Code: CodeInvalidCropRegion}
	ErrInvalidDimensions = &AppError{Type: ErrorTypeFilter, Code: CodeInvalidDimensions}
)

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return fmt.Sprintf("%s: %v", msg, e.InnerError)
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage replaces the message of the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode sets the code of the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// Is reports whether target is an AppError of the same type. A target with
// a code must match the code as well.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Message:    err.Error(),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the type of the first AppError in err's chain.
func TypeOf(err error) ErrorType {
	if appErr := FromError(err); appErr != nil {
		return appErr.Type
	}
	return ""
}

// Source errors
func NewDecode(message string, err error) *AppError {
	return WrapWithType(err, ErrorTypeDecode, message)
}

func NewSourceUnavailable(name string, err error) *AppError {
	return NewDecode(fmt.Sprintf("cannot open source %q", name), err).
		WithCode(CodeSourceUnavailable).
		WithDetail("source", name)
}

func NewUnsupportedFormat(name string, err error) *AppError {
	return NewDecode(fmt.Sprintf("source %q is not a supported still image", name), err).
		WithCode(CodeUnsupportedFormat).
		WithDetail("source", name)
}

func NewOrientation(err error) *AppError {
	return WrapWithType(err, ErrorTypeOrientation, "orientation metadata unreadable")
}

// Filter errors
func NewInvalidCropRegion(reason string) *AppError {
	return New(ErrorTypeFilter, "invalid crop region: "+reason).
		WithCode(CodeInvalidCropRegion)
}

func NewInvalidDimensions(reason string) *AppError {
	return New(ErrorTypeFilter, "invalid dimensions: "+reason).
		WithCode(CodeInvalidDimensions)
}

func NewInvalid(field string, value interface{}, reason string) *AppError {
	return New(ErrorTypeInvalid, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// Output errors
func NewTargetNotWritable(path string, err error) *AppError {
	return WrapWithType(err, ErrorTypeEncode, fmt.Sprintf("cannot write target %q", path)).
		WithCode(CodeTargetNotWritable).
		WithDetail("target", path)
}

func NewEncode(message string, err error) *AppError {
	return WrapWithType(err, ErrorTypeEncode, message)
}

// System errors
func NewCanceled(err error) *AppError {
	return WrapWithType(err, ErrorTypeCanceled, "processing abandoned")
}

func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message)
}
