// Package store is the record-level persistence boundary of the attendance core.
//
// Every coordination write (lease claim/renew/release, token rotation, session consumption)
// is a single conditional UPDATE whose affected-row count decides the compare-and-set.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

// Gorm implements the persistence boundary on top of gorm.
type Gorm struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// DB exposes the handle for callers that share the connection (audit middleware).
func (s *Gorm) DB() *gorm.DB {
	return s.db
}

// WithinTx runs fn against a store bound to a single transaction.
// fn must only use the store it is given.
func (s *Gorm) WithinTx(ctx context.Context, fn func(tx *Gorm) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
