package shared

import "context"

// TransactionManager runs a function inside a single storage transaction.
// Everything written through repositories inside fn commits atomically; an
// error from fn rolls the whole set back.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionManagerFunc adapts a plain function to the TransactionManager
// interface.
type TransactionManagerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Do calls f
func (f TransactionManagerFunc) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// PassthroughTransactionManager runs the function directly, without opening a
// transaction. For callers whose storage is atomic by other means, and for
// tests against in-memory repositories.
func PassthroughTransactionManager() TransactionManager {
	return TransactionManagerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}
