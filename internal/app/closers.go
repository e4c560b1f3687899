package app

import (
	"context"
	"errors"
	"fmt"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// closers collects release functions of acquired resources.
type closers []closer

func (c *closers) add(name string, fn func(ctx context.Context) error) {
	*c = append(*c, closer{name: name, fn: fn})
}

// close runs every release function, last added first, and joins their
// errors. It is safe to call more than once.
func (c *closers) close(ctx context.Context) error {
	var errs []error
	for i := len(*c) - 1; i >= 0; i-- {
		cl := (*c)[i]
		if err := cl.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	*c = nil

	return errors.Join(errs...)
}
