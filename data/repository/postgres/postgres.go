package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/jmoiron/sqlx"
)

// Querier holds the methods shared by sqlx.DB and sqlx.Tx that the repository needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type txKey struct{}

type Postgres struct {
	db  *sqlx.DB
	cfg *config.Config
}

func NewPostgres(cfg *config.Config, db *sqlx.DB) *Postgres {
	return &Postgres{db: db, cfg: cfg}
}

// WithinTransaction runs tFunc in a transaction that commits when tFunc returns nil.
// Repository calls made with the ctx passed to tFunc join the transaction.
func (p *Postgres) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("failed to rollback transaction", slog.String("rqID", rqID), slog.String("err", rbErr.Error()))
			}
		}
	}()

	err = tFunc(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// txOrDb returns the transaction stored in ctx, or the plain connection.
func (p *Postgres) txOrDb(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return p.db
}
