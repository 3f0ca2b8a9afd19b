package tx

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type gormTxKey struct{}

// GormCoordinator implements Coordinator on a *gorm.DB. Begin opens a
// database transaction and stores it in the context; the gorm stores pick it
// up with GormFrom so their writes join the request's unit of work.
type GormCoordinator struct {
	db *gorm.DB
}

// NewGormCoordinator wraps a database handle.
func NewGormCoordinator(db *gorm.DB) *GormCoordinator {
	return &GormCoordinator{db: db}
}

func (c *GormCoordinator) Begin(ctx context.Context) (context.Context, error) {
	txn := c.db.WithContext(ctx).Begin()
	if txn.Error != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", txn.Error)
	}
	return context.WithValue(ctx, gormTxKey{}, txn), nil
}

func (c *GormCoordinator) Commit(ctx context.Context) error {
	txn, ok := gormHandle(ctx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	return txn.Commit().Error
}

func (c *GormCoordinator) Rollback(ctx context.Context) error {
	txn, ok := gormHandle(ctx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	return txn.Rollback().Error
}

func gormHandle(ctx context.Context) (*gorm.DB, bool) {
	txn, ok := ctx.Value(gormTxKey{}).(*gorm.DB)
	return txn, ok
}

// GormFrom returns the ambient transaction if the context carries one, and
// fallback otherwise. Every gorm store resolves its handle through this.
func GormFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if txn, ok := gormHandle(ctx); ok {
		return txn
	}
	return fallback.WithContext(ctx)
}
