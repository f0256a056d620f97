// Package util provides the small set of generic helpers shared across
// packages, the way the teacher's pkg/util does: an error type carrying
// both a sentinel code and a formatted message, and a couple of generic
// slice/assertion helpers the planner's Dijkstra trace leans on.
package util

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func (e *Error) Code() error {
	return e.code
}

// WrapErrorf builds an Error carrying code (the sentinel kind callers
// errors.Is against), orig (the underlying cause, if any) and a formatted
// message.
func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

// ReverseG returns a reversed copy of arr, leaving arr itself untouched.
func ReverseG[T any](arr []T) []T {
	out := make([]T, len(arr))
	for i, j := 0, len(arr)-1; j >= 0; i, j = i+1, j-1 {
		out[i] = arr[j]
	}
	return out
}

// AssertPanic panics with msg if cond is false.
func AssertPanic(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

// MaxOrdered returns the larger of a and b, generic over any ordered type
// (golang.org/x/exp/constraints), the way the teacher's compressed sparse
// row builder picks its generic bounds.
func MaxOrdered[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
