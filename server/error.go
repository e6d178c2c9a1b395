package server

import (
	"chronolog/server/journal"
	"chronolog/server/replay"
	"chronolog/server/stream"
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// makeStatusError converts journal errors to gRPC status errors.
func makeStatusError(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, journal.ErrStoreClosed):
		code = codes.Unavailable
	case errors.Is(err, journal.ErrCodecEncode), errors.Is(err, replay.ErrInvalidAcceleration):
		code = codes.InvalidArgument
	case errors.Is(err, journal.ErrCodecDecode), errors.Is(err, journal.ErrCodecMalformedRecord):
		code = codes.DataLoss
	case errors.Is(err, context.Canceled), errors.Is(err, stream.ErrCancelled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Errorf(code, "%s: %s", msg, err.Error())
}
