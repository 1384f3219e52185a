// Package merr extends the standard errors package with contextual
// annotations and an embedded stacktrace, in the style of mediocre-go-lib's
// merr package. It is used for internal/operational errors (transport
// failures, decode errors) that get logged; it is never used to build the
// wire-visible "-ERR ..." reply strings, which keep their exact text as
// plain errors.New values.
package merr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mediocregopher/mredis/internal/mctx"
)

// Error wraps an error with the annotations present on a Context at the time
// of wrapping, plus a stacktrace captured at the Wrap call site.
type Error struct {
	Err        error
	ctx        context.Context
	Stacktrace stacktrace
}

// Error implements the error interface.
func (e Error) Error() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(e.Err.Error()))

	for _, a := range mctx.Annotations(e.ctx) {
		sb.WriteString("\n\t* ")
		sb.WriteString(toString(a.Key))
		sb.WriteString(": ")
		sb.WriteString(toString(a.Value))
	}
	if s := e.Stacktrace.String(); s != "" {
		sb.WriteString("\n\t* line: ")
		sb.WriteString(s)
	}
	return sb.String()
}

// Unwrap implements the interface used by errors.Is/errors.As.
func (e Error) Unwrap() error {
	return e.Err
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Wrap returns err annotated with the values attached to ctx and a
// stacktrace, or nil if err is nil. If err is already a merr.Error its
// context is merged rather than nested again.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var existing Error
	if errors.As(err, &existing) {
		existing.Err = err
		existing.ctx = mergeAnnotations(existing.ctx, ctx)
		return existing
	}

	return Error{
		Err:        err,
		ctx:        ctx,
		Stacktrace: newStacktrace(1),
	}
}

// New is a shortcut for Wrap(ctx, errors.New(str)).
func New(ctx context.Context, str string) error {
	return Error{
		Err:        errors.New(str),
		ctx:        ctx,
		Stacktrace: newStacktrace(1),
	}
}

func mergeAnnotations(base, extra context.Context) context.Context {
	if base == nil {
		return extra
	}
	aa := mctx.Annotations(extra)
	kvs := make([]interface{}, 0, len(aa)*2)
	for _, a := range aa {
		kvs = append(kvs, a.Key, a.Value)
	}
	return mctx.Annotate(base, kvs...)
}
