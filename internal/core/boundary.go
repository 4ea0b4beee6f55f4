package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"cardsignup/internal/types"
)

// ErrorBody is the only body a failed invocation ever returns.
const ErrorBody = "Error"

// Reported wraps an error that has already been logged by Guard so that an
// enclosing boundary does not log it a second time.
type Reported struct {
	Err error
}

func (r *Reported) Error() string { return r.Err.Error() }
func (r *Reported) Unwrap() error { return r.Err }

// PanicError carries a recovered panic value and the stack at the panic site.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Flatten collapses s onto a single line. Each newline (and any carriage
// return before it) becomes two spaces so a failure is one log record.
func Flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "  ")
	s = strings.ReplaceAll(s, "\n", "  ")
	return strings.ReplaceAll(s, "\r", "  ")
}

// Guard runs fn as the named operation. A returned error or a panic is logged
// exactly once at error level and returned wrapped in *Reported.
func Guard[T any](ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			var zero T
			result = zero
			err = &PanicError{Value: rvr, Stack: debug.Stack()}
		}
		if err != nil {
			err = report(ctx, logger, op, err)
		}
	}()
	return fn(ctx)
}

// Boundary runs fn and converts any failure into the generic error response.
// The status is the error kind's HTTP status, or 200 when uniformStatus is set.
// headers are applied to the error response.
func Boundary(ctx context.Context, logger *slog.Logger, uniformStatus bool, headers map[string]string, fn func(context.Context) (Response, error)) Response {
	resp, err := Guard(ctx, logger, "handle_request", fn)
	if err == nil {
		return resp
	}

	status := types.CodeOf(err).HTTPStatus()
	if uniformStatus {
		status = http.StatusOK
	}
	return Text(status, ErrorBody, headers)
}

// report logs err unless an inner Guard already did.
func report(ctx context.Context, logger *slog.Logger, op string, err error) error {
	var already *Reported
	if errors.As(err, &already) {
		return err
	}

	if logger == nil {
		logger = slog.Default()
	}

	var stack []byte
	var p *PanicError
	if errors.As(err, &p) {
		stack = p.Stack
	} else {
		stack = debug.Stack()
	}

	attrs := []any{
		"op", op,
		"error", Flatten(err.Error()),
		"code", string(types.CodeOf(err)),
		"stack", Flatten(string(stack)),
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && len(appErr.Details) > 0 {
		attrs = append(attrs, "details", flattenDetails(appErr.Details))
	}
	logger.ErrorContext(ctx, Flatten(op+" failed"), attrs...)

	return &Reported{Err: err}
}

func flattenDetails(details map[string]any) map[string]string {
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = Flatten(fmt.Sprint(v))
	}
	return out
}
