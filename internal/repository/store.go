package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

// Querier pgx.Tx 和 *pgxpool.Pool 的公共子集
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements progression.Transactor on PostgreSQL.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// WithinTx 开启事务执行 fn；fn 返回错误或 panic 时回滚
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) error {
	ctx, span := otel.DBSpan(ctx, "tx")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		otel.WrapDBError(span, err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, newTxScope(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		otel.WrapDBError(span, err)
		s.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txScope struct {
	projects  *ProjectRepository
	ratings   *RatingRepository
	approvals *ApprovalRepository
	roster    *MentorRepository
	events    *EventWriter
}

func newTxScope(q Querier) *txScope {
	return &txScope{
		projects:  NewProjectRepository(q),
		ratings:   NewRatingRepository(q),
		approvals: NewApprovalRepository(q),
		roster:    NewMentorRepository(q),
		events:    NewEventWriter(q),
	}
}

func (t *txScope) Projects() progression.ProjectStore   { return t.projects }
func (t *txScope) Ratings() progression.RatingStore     { return t.ratings }
func (t *txScope) Approvals() progression.ApprovalStore { return t.approvals }
func (t *txScope) Roster() progression.MentorRoster     { return t.roster }
func (t *txScope) Events() progression.EventWriter      { return t.events }

// notFoundOr 把 pgx.ErrNoRows 转成 progression.ErrRecordNotFound
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, progression.ErrRecordNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
