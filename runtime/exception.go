package runtime

import (
	"context"
	"fmt"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
)

// Exception is a runtime exception surfaced as a Go error.
type Exception struct {
	Value    jlvalue.Value
	TypeName string
	Message  string // empty when the exception has no string msg field
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("runtime exception %s", e.TypeName)
	}
	return fmt.Sprintf("runtime exception %s: %s", e.TypeName, e.Message)
}

// Unwrap exposes the exception as a structured error so callers can match
// it with errors.Is against PhaseRuntime/KindException.
func (e *Exception) Unwrap() error {
	return errors.New(errors.PhaseRuntime, errors.KindException).
		RuntimeType(e.TypeName).
		Value(e.Value).
		Detail("%s", e.Message).
		Build()
}

// CheckException returns the pending exception as an *Exception, or nil.
// The slot is left as it is.
func (r *Runtime) CheckException(ctx context.Context) error {
	v, err := r.prims.ExceptionOccurred(ctx)
	if err != nil {
		return err
	}
	if v.IsNil() {
		return nil
	}
	exc := &Exception{Value: v}
	if name, err := r.prims.TypeofStr(ctx, v); err == nil {
		exc.TypeName = name
	}
	exc.Message = r.message(ctx, v)
	return exc
}

func (r *Runtime) message(ctx context.Context, v jlvalue.Value) string {
	t := r.dec.TypeOf(v)
	if !r.preds.IsDataType(t) {
		return ""
	}
	i, err := r.reader.FieldIndex(ctx, t, "msg")
	if err != nil || i < 0 {
		return ""
	}
	msg, err := r.reader.FieldRef(ctx, v, i)
	if err != nil || !r.preds.IsString(msg) {
		return ""
	}
	sv, err := r.reader.String(msg)
	if err != nil {
		return ""
	}
	b, err := sv.Bytes(r.mem)
	if err != nil {
		return ""
	}
	return string(b)
}
