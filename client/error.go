package client

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrEmptyPayload   = errors.New("ErrEmptyPayload: payloads cannot be empty")
	ErrConsumerClosed = errors.New("ErrConsumerClosed: consumer is closed")
)

// Error is returned when the server fails a request.
type Error struct {
	errorCode codes.Code
	errorMsg  string
}

func newError(err error) *Error {
	st := status.Convert(err)
	return &Error{
		errorCode: st.Code(),
		errorMsg:  st.Message(),
	}
}

func (err *Error) Error() string {
	return err.errorCode.String() + ": " + err.errorMsg
}

// Code returns the gRPC status code the server failed the request with.
func (err *Error) Code() codes.Code {
	return err.errorCode
}
