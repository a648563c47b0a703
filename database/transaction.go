package database

import (
	"context"
	"fmt"

	"github.com/yeremiapane/table-order/utils"
	"gorm.io/gorm"
)

type scopeKey struct{}

// InScope reports whether ctx belongs to an open connection scope.
func InScope(ctx context.Context) bool {
	return ctx != nil && ctx.Value(scopeKey{}) != nil
}

// WithTransaction runs fn inside one transaction on one pooled connection.
// fn's error is returned after rollback; a rollback failure is only logged.
// Connectivity faults discard the connection and come back wrapped in ErrConnectivity.
// Scopes do not nest: code inside fn must use tx (or tx.Statement.Context).
func (p *Pool) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	if InScope(ctx) {
		return ErrNestedTransaction
	}
	ctx = context.WithValue(ctx, scopeKey{}, true)

	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	discardConn := false
	defer func() { p.Release(conn, discardConn) }()

	tx := conn.DB.Begin()
	if tx.Error != nil {
		if IsConnectivityFault(tx.Error) {
			discardConn = true
			return connectivityError(tx.Error)
		}
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := rollback(tx); rbErr != nil {
				discardConn = true
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := rollback(tx); IsConnectivityFault(rbErr) {
			discardConn = true
		}
		if IsConnectivityFault(err) {
			discardConn = true
			return connectivityError(err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		if IsConnectivityFault(err) {
			discardConn = true
			return connectivityError(err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *gorm.DB) error {
	err := tx.Rollback().Error
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("transaction rollback failed")
	}
	return err
}

// WithConn lends one pooled connection to fn without a transaction. Used by read paths.
func (p *Pool) WithConn(ctx context.Context, fn func(db *gorm.DB) error) error {
	if InScope(ctx) {
		return ErrNestedTransaction
	}
	ctx = context.WithValue(ctx, scopeKey{}, true)

	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	discardConn := false
	defer func() { p.Release(conn, discardConn) }()

	if err := fn(conn.DB); err != nil {
		if IsConnectivityFault(err) {
			discardConn = true
			return connectivityError(err)
		}
		return err
	}
	return nil
}
