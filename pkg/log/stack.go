package log

import (
	"github.com/cockroachdb/errors"
)

// stackMarshaler is installed as zerolog.ErrorStackMarshaler so that
// Event.Stack() renders the stack captured by cockroachdb/errors.
func stackMarshaler(err error) interface{} {
	if st := extractStacktrace(err); st != "" {
		return st
	}
	return nil
}

// extractStacktrace walks the error chain and returns the first safe detail,
// which for errors.WithStack layers is the formatted stack.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		safeDetails := errors.GetSafeDetails(e).SafeDetails
		if len(safeDetails) > 0 && safeDetails[0] != "" {
			return safeDetails[0]
		}
	}
	return ""
}
