// Package er implements the result-type error discipline used throughout
// utxocore. No package in this module panics or returns a bare stdlib
// error past its own boundary: every fallible operation returns an R.
// An R built from an ErrorCode carries that code so a caller can branch
// on error identity with Is/Decode instead of string matching; the
// untyped R values from New, Errorf and Wrap carry only a message.
package er

import (
	"fmt"
	"strings"
)

// R is the result-type error interface. A nil R means success.
type R interface {
	error
	String() string
}

// ErrorCode identifies one specific category of fault within an ErrorType.
type ErrorCode struct {
	Detail string
	Type   *ErrorType
}

// ErrorType groups a family of related ErrorCodes, one per package.
type ErrorType struct {
	Name  string
	Codes []*ErrorCode
}

// NewErrorType registers a new error family. ident should be the
// dotted package.Err name, e.g. "wtxo.Err".
func NewErrorType(ident string) ErrorType {
	return ErrorType{Name: ident}
}

// Code allocates a new ErrorCode within this type.
func (e *ErrorType) Code(name string) *ErrorCode {
	c := &ErrorCode{Detail: name, Type: e}
	e.Codes = append(e.Codes, c)
	return c
}

// Is reports whether err was produced by this ErrorType.
func (e *ErrorType) Is(err R) bool {
	if err == nil {
		return false
	}
	te, ok := err.(*typed)
	return ok && te.code.Type == e
}

// Decode returns the ErrorCode that produced err, or nil.
func (e *ErrorType) Decode(err R) *ErrorCode {
	if err == nil {
		return nil
	}
	if te, ok := err.(*typed); ok {
		return te.code
	}
	return nil
}

// Is reports whether err was produced by this specific code.
func (c *ErrorCode) Is(err R) bool {
	if err == nil {
		return false
	}
	te, ok := err.(*typed)
	return ok && te.code == c
}

// New wraps info and an optional cause into an R carrying this code.
func (c *ErrorCode) New(info string, cause R) R {
	msgs := []string{c.Detail}
	if info != "" {
		msgs = append(msgs, info)
	}
	return &typed{code: c, messages: msgs, cause: cause}
}

// Default returns a bare instance of this code with no extra detail,
// useful as a sentinel to compare against with er.Equals.
func (c *ErrorCode) Default() R {
	return c.New("", nil)
}

type typed struct {
	code     *ErrorCode
	messages []string
	cause    R
}

func (t *typed) Error() string { return t.String() }

func (t *typed) String() string {
	s := strings.Join(t.messages, ": ")
	if t.cause != nil {
		s = s + ": " + t.cause.String()
	}
	return s
}

// Errorf builds an untyped R from a format string, for ad-hoc failures
// that don't warrant a dedicated ErrorCode.
func Errorf(format string, args ...interface{}) R {
	return &plain{msg: fmt.Sprintf(format, args...)}
}

// New builds an untyped R from a plain message.
func New(msg string) R {
	return &plain{msg: msg}
}

type plain struct{ msg string }

func (p *plain) Error() string  { return p.msg }
func (p *plain) String() string { return p.msg }

// Equals reports whether two R values represent the same error code
// (or, for untyped errors, the same message).
func Equals(a, b R) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, aok := a.(*typed)
	tb, bok := b.(*typed)
	if aok && bok {
		return ta.code == tb.code
	}
	if !aok && !bok {
		return a.String() == b.String()
	}
	return false
}

// Wrap adapts a plain Go error into an R, preserving nil.
func Wrap(err error) R {
	if err == nil {
		return nil
	}
	if r, ok := err.(R); ok {
		return r
	}
	return &plain{msg: err.Error()}
}
