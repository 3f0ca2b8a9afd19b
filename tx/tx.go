// Package tx provides the transaction coordinator used by the OAuth linking
// workflow. The unit-of-work handle travels as an explicit context value
// rather than hidden global state, so every store can join the transaction
// the request opened and tests can see exactly where the boundary sits.
package tx

import "context"

// Coordinator begins, commits and rolls back units of work. Begin returns a
// context carrying the new handle; the same context must be passed to every
// nested call and finally to Commit or Rollback. A handle belongs to a
// single request's execution path and must not be shared across requests.
type Coordinator interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// InTransaction runs workload inside one unit of work, committing on success
// and rolling back on error or panic. Panics are rethrown.
func InTransaction(ctx context.Context, c Coordinator, workload func(ctx context.Context) error) (err error) {
	txCtx, err := c.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = c.Rollback(txCtx)
			panic(p)
		}
		if err != nil {
			_ = c.Rollback(txCtx)
			return
		}
		err = c.Commit(txCtx)
	}()

	err = workload(txCtx)
	return err
}

// Nop is a coordinator without transactional semantics, for wiring the
// services against stores that have no shared unit of work (development
// fixtures, in-memory stores).
type Nop struct{}

func (Nop) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (Nop) Commit(ctx context.Context) error                   { return nil }
func (Nop) Rollback(ctx context.Context) error                 { return nil }
