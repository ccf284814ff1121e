package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of NFC error for programmatic handling.
type ErrorCode int

const (
	// Tag operation errors (100-199)
	ErrCodeNotSupported ErrorCode = iota + 100
	ErrCodeTagRemoved
	ErrCodeTagCommunication
	ErrCodeMalformedTag
	ErrCodeCapacityExceeded
	ErrCodePermission
	ErrCodeConfiguration
)

// String returns the wire name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeNotSupported:
		return "NOT_SUPPORTED"
	case ErrCodeTagRemoved:
		return "TAG_REMOVED"
	case ErrCodeTagCommunication:
		return "TAG_COMMUNICATION"
	case ErrCodeMalformedTag:
		return "MALFORMED_TAG"
	case ErrCodeCapacityExceeded:
		return "CAPACITY_EXCEEDED"
	case ErrCodePermission:
		return "PERMISSION"
	case ErrCodeConfiguration:
		return "CONFIGURATION"
	default:
		return "UNKNOWN"
	}
}

// NFCError provides structured error information for programmatic handling.
type NFCError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "ReadTag", "MakeReadOnly")
	TagUID  string // Optional: UID of tag involved
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *NFCError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *NFCError) Unwrap() error {
	return e.Cause
}

func (e *NFCError) Is(target error) bool {
	if t, ok := target.(*NFCError); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrTagCommunication = &NFCError{Code: ErrCodeTagCommunication, Message: "tag communication failed"}
	ErrMalformedTag     = &NFCError{Code: ErrCodeMalformedTag, Message: "malformed tag"}
	ErrCapacityExceeded = &NFCError{Code: ErrCodeCapacityExceeded, Message: "capacity exceeded"}
	ErrPermission       = &NFCError{Code: ErrCodePermission, Message: "permission denied"}
	ErrConfiguration    = &NFCError{Code: ErrCodeConfiguration, Message: "configuration error"}
)

// NewNotSupportedError creates an error for unsupported operations.
func NewNotSupportedError(op string) *NFCError {
	return &NFCError{
		Code:    ErrCodeNotSupported,
		Op:      op,
		Message: "operation not supported",
	}
}

// NewTagRemovedError creates an error for when a tag is removed mid-operation.
func NewTagRemovedError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeTagRemoved,
		Op:      op,
		Message: "tag removed during operation",
		Cause:   cause,
	}
}

// NewCommunicationError creates an error for a failed page read or write.
func NewCommunicationError(op, message string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeTagCommunication,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// NewMalformedTagError creates an error for a tag whose format is not recognized.
func NewMalformedTagError(op, message string) *NFCError {
	return &NFCError{
		Code:    ErrCodeMalformedTag,
		Op:      op,
		Message: message,
	}
}

// NewCapacityError creates an error for a payload that does not fit the tag.
func NewCapacityError(op string, need, limit int) *NFCError {
	return &NFCError{
		Code:    ErrCodeCapacityExceeded,
		Op:      op,
		Message: fmt.Sprintf("length of message is larger than supported (%d > %d bytes)", need, limit),
	}
}

// NewPermissionError creates an error for a write against a read-only tag.
func NewPermissionError(op, tagUID string) *NFCError {
	return &NFCError{
		Code:    ErrCodePermission,
		Op:      op,
		TagUID:  tagUID,
		Message: "tag is read-only, cannot write",
	}
}

// NewConfigurationError creates an error for a phase entered without the settings it needs.
func NewConfigurationError(op, message string) *NFCError {
	return &NFCError{
		Code:    ErrCodeConfiguration,
		Op:      op,
		Message: message,
	}
}

// IsNotSupportedError checks if an error indicates an unsupported operation.
func IsNotSupportedError(err error) bool {
	return hasCode(err, ErrCodeNotSupported)
}

// IsTagRemovedError checks if an error indicates the tag was removed.
func IsTagRemovedError(err error) bool {
	if err == nil {
		return false
	}
	if hasCode(err, ErrCodeTagRemoved) {
		return true
	}
	// Fallback to string matching for driver errors
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tag removed") ||
		strings.Contains(errStr, "card removed") ||
		strings.Contains(errStr, "target was removed")
}

// IsCommunicationError checks if an error is a TagCommunicationError.
func IsCommunicationError(err error) bool {
	return hasCode(err, ErrCodeTagCommunication)
}

// IsMalformedTagError checks if an error is a MalformedTagError.
func IsMalformedTagError(err error) bool {
	return hasCode(err, ErrCodeMalformedTag)
}

// IsCapacityError checks if an error is a CapacityExceededError.
func IsCapacityError(err error) bool {
	return hasCode(err, ErrCodeCapacityExceeded)
}

// IsPermissionError checks if an error is a PermissionError.
func IsPermissionError(err error) bool {
	return hasCode(err, ErrCodePermission)
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

func hasCode(err error, code ErrorCode) bool {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code == code
	}
	return false
}

// GetErrorCode extracts the ErrorCode from an error if it's an NFCError.
// Returns 0 if the error is not an NFCError.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}

// WrapError wraps an existing error with NFC context.
func WrapError(code ErrorCode, op, message string, cause error) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}
