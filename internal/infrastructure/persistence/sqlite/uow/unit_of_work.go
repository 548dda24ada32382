package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"escrutinio/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx runs fn inside a transaction. A call made while ctx already carries a
// transaction joins it through a savepoint instead of opening a second one.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	base := u.db
	if tx, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && tx != nil {
		base = tx
	}

	return base.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
