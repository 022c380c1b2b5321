package errors

import (
	"errors"
)

// As is errors.As narrowed to *Error
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the first *Error in the chain. Nil is OK; a plain error is
// Internal.
func GetCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return codeOf(err)
}

// GetMeta returns the metadata of the first *Error in the chain
func GetMeta(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Meta
	}
	return nil
}

// GetKind returns the kind recorded on the error, or KindNone
func GetKind(err error) Kind {
	kind, _ := GetMeta(err)[MetaKind].(string)
	return Kind(kind)
}

// GetMessage returns the user-facing message, falling back to err.Error()
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

func IsInvalidArgument(err error) bool {
	return GetCode(err) == CodeInvalidArgument
}

func IsAlreadyExists(err error) bool {
	return GetCode(err) == CodeAlreadyExists
}

func IsFailedPrecondition(err error) bool {
	return GetCode(err) == CodeFailedPrecondition
}

func IsAborted(err error) bool {
	return GetCode(err) == CodeAborted
}

func IsOutOfRange(err error) bool {
	return GetCode(err) == CodeOutOfRange
}

func IsCanceled(err error) bool {
	return GetCode(err) == CodeCanceled
}

// IsParse reports whether err is a malformed-input failure
func IsParse(err error) bool {
	return GetKind(err) == KindParse
}

// IsArithmetic reports whether err is an evaluation failure
func IsArithmetic(err error) bool {
	return GetKind(err) == KindArithmetic
}
