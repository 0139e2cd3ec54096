package entity

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 运行失败的分类
type ErrorKind string

const (
	KindNavigation     ErrorKind = "navigation"
	KindTimeout        ErrorKind = "timeout"
	KindAuthentication ErrorKind = "authentication"
	KindStorage        ErrorKind = "storage"
	KindConfig         ErrorKind = "config"
)

// RunError is a fatal failure of one pipeline stage.
type RunError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError classifies err under kind. Navigation failures caused by an
// expired deadline are reported as KindTimeout. An err that is already a
// *RunError keeps its original classification.
func NewRunError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RunError
	if errors.As(err, &re) {
		return err
	}
	if kind == KindNavigation && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &RunError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or "" when err was never classified.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// OpOf returns the failing operation recorded on err.
func OpOf(err error) string {
	var re *RunError
	if errors.As(err, &re) {
		return re.Op
	}
	return ""
}
