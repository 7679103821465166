package shared

import "context"

// TxManager runs a function inside a single local transaction.
// Repositories called with the ctx passed to fn join that transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
