package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

type ErrorsTestSuite struct {
	suite.Suite
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}

func (s *ErrorsTestSuite) TestNewError() {
	err := errors.New(errors.CodeNotFound, "sheet not found")
	s.Assert().Equal("NOT_FOUND: sheet not found", err.Error())
	s.Assert().Equal(errors.CodeNotFound, err.Code)
}

func (s *ErrorsTestSuite) TestWrapPreservesCodeAndKind() {
	base := errors.Parsef("unexpected %q", ")")
	wrapped := errors.Wrap(base, "roll failed")

	s.Assert().Equal(errors.CodeInvalidArgument, wrapped.Code)
	s.Assert().Equal("roll failed", wrapped.Message)
	s.Assert().Equal(errors.KindParse, errors.GetKind(wrapped))
	s.Assert().True(errors.IsParse(wrapped))
	s.Assert().Equal(base, wrapped.Unwrap())
}

func (s *ErrorsTestSuite) TestWrapPlainError() {
	wrapped := errors.Wrap(fmt.Errorf("disk full"), "failed to save sheet")

	s.Assert().Equal(errors.CodeInternal, wrapped.Code)
	s.Assert().Equal(errors.KindNone, errors.GetKind(wrapped))
}

func (s *ErrorsTestSuite) TestWrapContextErrors() {
	s.Assert().True(errors.IsCanceled(errors.Wrap(context.Canceled, "roll interrupted")))
	s.Assert().Equal(errors.CodeDeadlineExceeded,
		errors.Wrap(fmt.Errorf("ping: %w", context.DeadlineExceeded), "store slow").Code)
}

func (s *ErrorsTestSuite) TestWrapWithCode() {
	wrapped := errors.WrapWithCode(errors.NotFound("x").WithMeta("key", "k"), errors.CodeUnavailable, "store down")
	s.Assert().Equal(errors.CodeUnavailable, wrapped.Code)
	s.Assert().Equal("k", wrapped.Meta["key"])
}

func (s *ErrorsTestSuite) TestWrapNil() {
	s.Assert().Nil(errors.Wrap(nil, "should be nil"))
	s.Assert().Nil(errors.WrapWithCode(nil, errors.CodeNotFound, "should be nil"))
}

func (s *ErrorsTestSuite) TestErrorIs() {
	s.Assert().True(errors.NotFound("a").Is(errors.NotFound("b")))
	s.Assert().False(errors.NotFound("a").Is(errors.InvalidArgument("a")))
}

func (s *ErrorsTestSuite) TestHelperFunctions() {
	s.Assert().True(errors.IsNotFound(errors.Wrap(errors.NotFound("x"), "wrapped")))
	s.Assert().True(errors.IsAborted(errors.Aborted("busy")))
	s.Assert().True(errors.IsOutOfRange(errors.OutOfRangef("division by %s", "zero")))
	s.Assert().True(errors.IsFailedPrecondition(errors.FailedPreconditionf("on cooldown")))
	s.Assert().True(errors.IsAlreadyExists(errors.AlreadyExists("dup")))
	s.Assert().Equal(errors.CodeOK, errors.GetCode(nil))
	s.Assert().Equal(errors.CodeInternal, errors.GetCode(fmt.Errorf("plain")))
	s.Assert().Equal("plain", errors.GetMessage(fmt.Errorf("plain")))
}

func (s *ErrorsTestSuite) TestArithmetic() {
	err := errors.Arithmetic("division by zero")
	s.Assert().True(errors.IsOutOfRange(err))
	s.Assert().True(errors.IsArithmetic(err))
	s.Assert().False(errors.IsParse(err))
}

func (s *ErrorsTestSuite) TestGRPCRoundTripKeepsKind() {
	grpcErr := errors.ToGRPCError(errors.Arithmetic("division by zero").WithMeta("expression", "5/0"))

	st, ok := status.FromError(grpcErr)
	s.Require().True(ok)
	s.Assert().Equal(codes.OutOfRange, st.Code())
	s.Assert().Equal("division by zero", st.Message())

	back := errors.FromGRPCError(grpcErr)
	s.Assert().True(errors.IsOutOfRange(back))
	s.Assert().True(errors.IsArithmetic(back))
	s.Assert().Equal("5/0", errors.GetMeta(back)["expression"])
}

func (s *ErrorsTestSuite) TestGRPCPlainStatus() {
	back := errors.FromGRPCError(status.Error(codes.Aborted, "roll in progress"))
	s.Assert().True(errors.IsAborted(back))
	s.Assert().Equal("roll in progress", errors.GetMessage(back))

	s.Assert().Equal(codes.Unknown, errors.Code("BOGUS").GRPCCode())
	s.Assert().Equal(codes.Internal, status.Code(errors.ToGRPCError(fmt.Errorf("plain"))))
}

func (s *ErrorsTestSuite) TestGRPCValidationFields() {
	err := errors.NewValidationBuilder().
		RequiredField("name").
		Fieldf("level", "must be at least %d", 1).
		Build()

	back := errors.FromGRPCError(errors.ToGRPCError(err))
	s.Assert().True(errors.IsInvalidArgument(back))
	s.Assert().Equal("level: must be at least 1; name: is required", errors.GetMeta(back)[errors.MetaFields])
}
