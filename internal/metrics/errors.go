package metrics

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// Error type attribute values for RCON request metrics.
const (
	ErrorNone              = "none"
	ErrorTimeout           = "timeout"
	ErrorConnectionRefused = "connection_refused"
	ErrorAuthRejected      = "auth_rejected"
	ErrorUnknown           = "unknown"
)

// ClassifyError returns the error type for metrics from a transport error.
// Authentication rejections are not transport errors;
// callers record ErrorAuthRejected directly.
func ClassifyError(err error) string {
	if err == nil {
		return ErrorNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrorTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorConnectionRefused
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		if strings.Contains(err.Error(), "connection refused") {
			return ErrorConnectionRefused
		}
	}
	return ErrorUnknown
}
