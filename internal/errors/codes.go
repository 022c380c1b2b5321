package errors

// Code classifies an error. Each code has a gRPC status equivalent.
type Code string

// Error codes in use across rpg-sheet
const (
	CodeOK                 Code = "OK"
	CodeCanceled           Code = "CANCELED"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeAborted            Code = "ABORTED"
	CodeOutOfRange         Code = "OUT_OF_RANGE"
	CodeUnimplemented      Code = "UNIMPLEMENTED"
	CodeInternal           Code = "INTERNAL"
	CodeUnavailable        Code = "UNAVAILABLE"
)

func (c Code) String() string {
	return string(c)
}

// Kind splits a code further. Parse and arithmetic failures from the dice evaluator both
// need to reach the user as distinct messages even after crossing gRPC.
type Kind string

// Error kinds
const (
	KindNone Kind = ""
	// KindParse marks malformed input: bad characters, unbalanced parentheses, bad dice
	KindParse Kind = "parse"
	// KindArithmetic marks evaluation failures such as division by zero
	KindArithmetic Kind = "arithmetic"
)
