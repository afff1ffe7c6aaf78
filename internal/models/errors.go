package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"
	CodeElementNotFound      ErrorCode = "ELEMENT_NOT_FOUND"
	CodeShareTargetNotFound  ErrorCode = "SHARE_TARGET_NOT_FOUND"
	CodeDriveFolderMismatch  ErrorCode = "DRIVE_FOLDER_MISMATCH"
	CodeDeviceCommandFailed  ErrorCode = "DEVICE_COMMAND_FAILED"
	CodeCloudDownloadTimeout ErrorCode = "CLOUD_DOWNLOAD_TIMEOUT"
)

// Sentinels for errors.Is; an *AppError matches the sentinel of its code.
var (
	ErrConversationNotFound = &AppError{Code: CodeConversationNotFound, Message: "conversation not found"}
	ErrElementNotFound      = &AppError{Code: CodeElementNotFound, Message: "element not found"}
	ErrShareTargetNotFound  = &AppError{Code: CodeShareTargetNotFound, Message: "share target not found"}
	ErrDriveFolderMismatch  = &AppError{Code: CodeDriveFolderMismatch, Message: "drive folder mismatch"}
	ErrDeviceCommandFailed  = &AppError{Code: CodeDeviceCommandFailed, Message: "device command failed"}
	ErrCloudDownloadTimeout = &AppError{Code: CodeCloudDownloadTimeout, Message: "cloud download timed out"}
)

type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NewError(code ErrorCode, msg string, details map[string]any) *AppError {
	return &AppError{Code: code, Message: msg, Details: details}
}

func WrapError(code ErrorCode, msg string, err error) *AppError {
	return &AppError{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
