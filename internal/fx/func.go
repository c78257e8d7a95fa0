// SPDX-License-Identifier: GPL-3.0-or-later

// Package fx provides the composable Func primitive used by the
// notification sender (internal/notify).
package fx

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// Func instances can be composed using [Compose2], [Compose3], etc. to build
// type-safe pipelines where the output of one stage flows to the input of
// the next — used by internal/notify to chain its dial and write stages.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
