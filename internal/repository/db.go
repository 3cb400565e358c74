package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
)

// ErrNotFound は対象のレコードが存在しない場合に返します
var ErrNotFound = errors.New("record not found")

type DB struct {
	*sqlx.DB
}

func NewDB(conn *sqlx.DB) *DB {
	return &DB{DB: conn}
}

// Transactor はトランザクション境界を提供します
type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// RunInTx はfnをトランザクション内で実行します
// fnがエラーを返した場合はロールバックし、それ以外はコミットします
func (db *DB) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	ctx, end := tracing.Start(ctx, "DB.RunInTx")
	defer func() { end(err) }()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("rollback failed: %v, original error: %v", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ext はトランザクションがあればそれを、なければコネクションプールを返します
func (db *DB) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return db.DB
}
