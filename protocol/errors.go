package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is the flat error enumeration shared by both roles. The codes
// travel in MSG_ERROR payloads as a single byte, so the wire form is the
// two's-complement low byte of the value.
type ErrorCode int8

const (
	Success         ErrorCode = 0
	ErrSocket       ErrorCode = -1
	ErrConnect      ErrorCode = -2
	ErrBind         ErrorCode = -3
	ErrListen       ErrorCode = -4
	ErrAccept       ErrorCode = -5
	ErrSend         ErrorCode = -6
	ErrRecv         ErrorCode = -7
	ErrTimeout      ErrorCode = -8
	ErrFileOpen     ErrorCode = -10
	ErrFileRead     ErrorCode = -11
	ErrFileWrite    ErrorCode = -12
	ErrFileSeek     ErrorCode = -13
	ErrDiskFull     ErrorCode = -14
	ErrPermission   ErrorCode = -15
	ErrChecksum     ErrorCode = -20
	ErrProtocol     ErrorCode = -21
	ErrVersion      ErrorCode = -22
	ErrInvalidMsg   ErrorCode = -23
	ErrOutOfMemory  ErrorCode = -30
	ErrInvalidArg   ErrorCode = -31
	ErrFileNotFound ErrorCode = -32
	ErrNameTooLong  ErrorCode = -33
)

// String returns the human readable description of the code.
func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case ErrSocket:
		return "socket error"
	case ErrConnect:
		return "connection failed"
	case ErrBind:
		return "bind failed"
	case ErrListen:
		return "listen failed"
	case ErrAccept:
		return "accept failed"
	case ErrSend:
		return "send failed"
	case ErrRecv:
		return "receive failed"
	case ErrTimeout:
		return "operation timed out"
	case ErrFileOpen:
		return "file open failed"
	case ErrFileRead:
		return "file read failed"
	case ErrFileWrite:
		return "file write failed"
	case ErrFileSeek:
		return "file seek failed"
	case ErrDiskFull:
		return "disk full"
	case ErrPermission:
		return "permission denied"
	case ErrChecksum:
		return "checksum mismatch"
	case ErrProtocol:
		return "protocol error"
	case ErrVersion:
		return "version mismatch"
	case ErrInvalidMsg:
		return "invalid message"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidArg:
		return "invalid argument"
	case ErrFileNotFound:
		return "file not found"
	case ErrNameTooLong:
		return "filename too long"
	default:
		return "unknown error"
	}
}

// FTError is the single error type both state machines return. It carries
// the protocol error code, an optional detail string and an optional cause.
type FTError struct {
	Code   ErrorCode
	Detail string
	Cause  error
}

func (e *FTError) Error() string {
	msg := e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FTError) Unwrap() error {
	return e.Cause
}

// Is matches against another *FTError by code, so callers can test
// errors.Is(err, protocol.Errf(protocol.ErrTimeout, "")).
func (e *FTError) Is(target error) bool {
	var ft *FTError
	if errors.As(target, &ft) {
		return ft.Code == e.Code
	}
	return false
}

// Errf builds an FTError with a formatted detail string.
func Errf(code ErrorCode, format string, args ...interface{}) *FTError {
	return &FTError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// WrapErr builds an FTError around a cause.
func WrapErr(code ErrorCode, cause error) *FTError {
	return &FTError{Code: code, Cause: cause}
}

// CodeOf extracts the protocol code from any error, defaulting to
// ErrSocket for errors that did not originate here.
func CodeOf(err error) ErrorCode {
	var ft *FTError
	if errors.As(err, &ft) {
		return ft.Code
	}
	return ErrSocket
}
