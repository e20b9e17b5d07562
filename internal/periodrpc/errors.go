package periodrpc

import (
	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatusError maps period errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, model.ErrPeriodOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, model.ErrInvalidSnapshot):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatusError restores the period sentinels from a gRPC status so callers
// can match them with errors.Is.
func FromStatusError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.OutOfRange:
		return errors.Mark(errors.Newf("%s", st.Message()), model.ErrPeriodOutOfRange)
	case codes.InvalidArgument:
		return errors.Mark(errors.Newf("%s", st.Message()), model.ErrInvalidSnapshot)
	default:
		return errors.Wrapf(err, "period service")
	}
}
