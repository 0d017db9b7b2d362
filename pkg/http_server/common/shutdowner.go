package common

import "context"

// Shutdowner is implemented by components that flush or release resources on
// exit, such as the observability provider and the shared store.
type Shutdowner interface {
	Shutdown(context.Context) error
}

// ShutdownFunc adapts a function to Shutdowner.
type ShutdownFunc func(context.Context) error

// Shutdown calls f.
func (f ShutdownFunc) Shutdown(ctx context.Context) error {
	return f(ctx)
}
