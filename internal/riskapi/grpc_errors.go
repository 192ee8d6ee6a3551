package riskapi

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/debris-risk/internal/state"
)

var (
	// ErrNotFound is a package-level sentinel used when an entity cannot be located.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is a package-level sentinel used for malformed request messages.
	ErrInvalidRequest = errors.New("invalid request")
)

// ToStatusError maps assessment and catalog errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, state.ErrProfileNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, state.ErrInvalidParameters),
		errors.Is(err, state.ErrInvalidProfile),
		errors.Is(err, state.ErrInvalidTLE):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, state.ErrOverflow):
		return status.Error(codes.OutOfRange, err.Error())

	case errors.Is(err, state.ErrAssessmentPending):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, state.ErrProfileExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
