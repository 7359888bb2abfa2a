package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Insert creates the row and reports false when it already existed.
	Insert(ctx context.Context, db *gorm.DB, account *Account) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, accountID string) (*Account, error)
	// FindForUpdate reads the row under a row lock where the dialect has one.
	FindForUpdate(ctx context.Context, db *gorm.DB, accountID string) (*Account, error)
	// UpdateBalance applies a new balance when the stored version still equals
	// expectedVersion, bumping version by one. ErrVersionMismatch otherwise.
	UpdateBalance(ctx context.Context, db *gorm.DB, accountID string, expectedVersion, newBalance int64, now time.Time) error
	SetStatus(ctx context.Context, db *gorm.DB, accountID string, status Status, now time.Time) (int64, error)
}
