package prompt

import (
	"context"
	"fmt"
)

// interruptible gives up on a pending question once its context is done.
type interruptible struct {
	ctx context.Context //nolint:containedctx // bounds every Ask
	p   Prompter
}

// WithContext returns a Prompter that reports ErrInputClosed as soon as ctx
// is done, even while p is still blocked reading. The blocked read is
// abandoned.
func WithContext(ctx context.Context, p Prompter) Prompter {
	return interruptible{ctx: ctx, p: p}
}

type answer struct {
	text string
	err  error
}

func (i interruptible) Ask(prompt, def string) (string, error) {
	if err := i.ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInputClosed, err)
	}

	ch := make(chan answer, 1)

	go func() {
		text, err := i.p.Ask(prompt, def)
		ch <- answer{text: text, err: err}
	}()

	select {
	case a := <-ch:
		return a.text, a.err
	case <-i.ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrInputClosed, context.Cause(i.ctx))
	}
}
