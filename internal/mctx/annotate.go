// Package mctx carries structured annotations on a context.Context, in the
// style of mediocre-go-lib's mctx package but without its component-path
// tracking: this process has a single keyspace, not a tree of components, so
// there is nothing for a path to disambiguate.
package mctx

import (
	"context"
	"fmt"
)

// Annotation is a single key/value pair attached to a Context via Annotate.
type Annotation struct {
	Key, Value interface{}
}

type annotation struct {
	Annotation
	prev *annotation
}

type annotationKey struct{}

// Annotate takes one or more key/value pairs (kvs must have even length) and
// returns a Context carrying them alongside any previously annotated on ctx.
func Annotate(ctx context.Context, kvs ...interface{}) context.Context {
	if len(kvs)%2 != 0 {
		panic("mctx.Annotate called with an odd number of arguments")
	} else if len(kvs) == 0 {
		return ctx
	}

	prev, _ := ctx.Value(annotationKey{}).(*annotation)
	var curr *annotation
	for i := 0; i < len(kvs); i += 2 {
		curr = &annotation{
			Annotation: Annotation{Key: kvs[i], Value: kvs[i+1]},
			prev:       prev,
		}
		prev = curr
	}
	return context.WithValue(ctx, annotationKey{}, curr)
}

// Annotations returns every Annotation attached to ctx, oldest first. If a
// key was annotated more than once, only the most recent value is included.
func Annotations(ctx context.Context) []Annotation {
	a, _ := ctx.Value(annotationKey{}).(*annotation)
	if a == nil {
		return nil
	}

	seen := make(map[interface{}]bool, 4)
	var rev []Annotation
	for ; a != nil; a = a.prev {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		rev = append(rev, a.Annotation)
	}

	out := make([]Annotation, len(rev))
	for i, ann := range rev {
		out[len(rev)-1-i] = ann
	}
	return out
}

// StringMap renders the Annotations on ctx as a map of strings, suitable for
// logging.
func StringMap(ctx context.Context) map[string]string {
	aa := Annotations(ctx)
	if len(aa) == 0 {
		return nil
	}
	m := make(map[string]string, len(aa))
	for _, a := range aa {
		m[toString(a.Key)] = toString(a.Value)
	}
	return m
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
