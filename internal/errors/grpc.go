package errors

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain identifies rpg-sheet errors in ErrorInfo details
const ErrorDomain = "rpg-sheet"

var grpcCodes = map[Code]codes.Code{
	CodeOK:                 codes.OK,
	CodeCanceled:           codes.Canceled,
	CodeDeadlineExceeded:   codes.DeadlineExceeded,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeNotFound:           codes.NotFound,
	CodeAlreadyExists:      codes.AlreadyExists,
	CodeFailedPrecondition: codes.FailedPrecondition,
	CodeAborted:            codes.Aborted,
	CodeOutOfRange:         codes.OutOfRange,
	CodeUnimplemented:      codes.Unimplemented,
	CodeInternal:           codes.Internal,
	CodeUnavailable:        codes.Unavailable,
}

var fromGRPCCodes = func() map[codes.Code]Code {
	m := make(map[codes.Code]Code, len(grpcCodes))
	for c, g := range grpcCodes {
		m[g] = c
	}
	return m
}()

// GRPCCode returns the gRPC status code for c
func (c Code) GRPCCode() codes.Code {
	if g, ok := grpcCodes[c]; ok {
		return g
	}
	return codes.Unknown
}

// ToGRPCError converts err to a gRPC status error. Metadata travels as an ErrorInfo
// detail with stringified values.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var e *Error
	if !As(err, &e) {
		return status.Error(GetCode(err).GRPCCode(), err.Error())
	}

	st := status.New(e.Code.GRPCCode(), e.Message)
	if len(e.Meta) > 0 {
		info := &errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   ErrorDomain,
			Metadata: stringifyMeta(e.Meta),
		}
		if withDetails, detailErr := st.WithDetails(info); detailErr == nil {
			st = withDetails
		}
	}
	return st.Err()
}

// FromGRPCError converts a gRPC status error back into an *Error. Errors that are not
// gRPC statuses are returned unchanged.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	code, ok := fromGRPCCodes[st.Code()]
	if !ok {
		code = CodeInternal
	}
	out := New(code, st.Message())

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for k, v := range info.GetMetadata() {
			out.WithMeta(k, v)
		}
	}
	return out
}

func stringifyMeta(meta map[string]interface{}) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []string:
			out[k] = strings.Join(val, "; ")
		case map[string][]string:
			keys := make([]string, 0, len(val))
			for field := range val {
				keys = append(keys, field)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, field := range keys {
				parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(val[field], ", ")))
			}
			out[k] = strings.Join(parts, "; ")
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
