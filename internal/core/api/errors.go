package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/smsfilter/internal/types"
)

// invalidArgument lists the error kinds caused by the request content.
var invalidArgument = []error{
	types.ErrMalformedDocument,
	types.ErrMissingField,
	types.ErrInvalidEnumValue,
	types.ErrInvalidRule,
	types.ErrPatternCompile,
	types.ErrUnsupportedVersion,
	types.ErrDocumentTooLarge,
	types.ErrTooManyRules,
}

// statusError maps a service error to a gRPC status. Anything not caused
// by the request or a missing record is treated as a storage failure.
func statusError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrRuleNotFound), errors.Is(err, types.ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	for _, kind := range invalidArgument {
		if errors.Is(err, kind) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Unavailable, err.Error())
}
