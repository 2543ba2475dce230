package graphql

import (
	"context"
	"errors"

	"github.com/pointboard/forum/internal/database/types"
	"go.uber.org/zap"
)

// Error codes reported in the "code" extension.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a client facing error with a machine readable code.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

// Extensions is picked up by the executor and sent with the error.
func (e *Error) Extensions() map[string]any {
	return map[string]any{"code": e.Code}
}

var (
	errNotAuthenticated = &Error{Message: "not authenticated", Code: CodeUnauthenticated}
	errInternal         = &Error{Message: "internal server error", Code: CodeInternal}
)

// clientError converts a service error into what the client may see.
// Store faults are logged and replaced by a generic error.
func (r *Resolver) clientError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrInvalidCursor):
		return &Error{Message: err.Error(), Code: CodeBadUserInput}
	case errors.Is(err, types.ErrVoteConflict):
		return &Error{Message: err.Error(), Code: CodeConflict}
	case errors.Is(err, context.Canceled):
		return err
	default:
		r.logger.Error("Resolver failed",
			zap.String("op", op),
			zap.Error(err))
		return errInternal
	}
}
