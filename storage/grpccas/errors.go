package grpccas

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nullbytes.dev/wipecert/storage"
)

// fromStatus maps service status codes back onto storage sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.DataLoss:
		return storage.ErrCIDMismatch
	case codes.AlreadyExists:
		return storage.ErrImmutable
	case codes.ResourceExhausted:
		return storage.ErrTooLarge
	case codes.InvalidArgument:
		if st.Message() == storage.ErrEmpty.Error() {
			return storage.ErrEmpty
		}
		return storage.ErrInvalidCID
	default:
		return err
	}
}
