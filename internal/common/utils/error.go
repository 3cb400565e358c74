package utils

import (
	"errors"
	"runtime/debug"
)

// StackError はエラーが発生した時点のスタックトレースを保持します
type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }

// Stack はスタックトレースを返します
func (e *StackError) Stack() string { return string(e.stack) }

// WithStack はエラーに呼び出し時点のスタックトレースを付与します
// すでに付与済みの場合は元のトレースを残します
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var se *StackError
	if errors.As(err, &se) {
		return err
	}
	return &StackError{err: err, stack: debug.Stack()}
}

// StackOf はerrに付与されたスタックトレースを返します。ない場合は空文字です
func StackOf(err error) string {
	var se *StackError
	if errors.As(err, &se) {
		return se.Stack()
	}
	return ""
}
